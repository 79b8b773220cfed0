// Package i18n holds the fr/en message catalog used by templates and
// validation messages. French is the default language.
package i18n

import (
	"context"
	"strings"
)

const DefaultLang = "fr"

var supported = map[string]bool{"fr": true, "en": true}

type langKey struct{}

func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, langKey{}, Normalize(lang))
}

func LangFromContext(ctx context.Context) string {
	if l, ok := ctx.Value(langKey{}).(string); ok && l != "" {
		return l
	}
	return DefaultLang
}

// Normalize returns a supported language code, DefaultLang otherwise.
func Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if base, _, ok := strings.Cut(lang, "-"); ok {
		lang = base
	}
	if supported[lang] {
		return lang
	}
	return DefaultLang
}

// DetectLanguage picks the first supported language of an Accept-Language header.
func DetectLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag, _, _ := strings.Cut(part, ";")
		tag = strings.ToLower(strings.TrimSpace(tag))
		base, _, _ := strings.Cut(tag, "-")
		if supported[base] {
			return base
		}
	}
	return DefaultLang
}

// T translates code. Unknown languages use French; unknown codes are returned as is.
func T(lang, code string) string {
	if m, ok := catalog[lang]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := catalog[DefaultLang][code]; ok {
		return s
	}
	return code
}

var catalog = map[string]map[string]string{
	"fr": {
		// validation
		"required":             "Requis",
		"invalid":              "Invalide",
		"invalid_email":        "Adresse e-mail invalide",
		"invalid_format":       "Format invalide",
		"invalid_url":          "URL invalide",
		"invalid_length":       "Longueur invalide",
		"invalid_choice":       "Choix invalide",
		"invalid_color":        "Couleur hexadécimale attendue (#RRGGBB)",
		"invalid_prefix":       "1 à 10 caractères alphanumériques",
		"invalid_date":         "Date invalide",
		"invalid_number":       "Nombre invalide",
		"too_long":             "Trop long",
		"too_short":            "Trop court",
		"must_be_positive":     "Doit être positif",
		"must_not_be_negative": "Ne peut pas être négatif",
		"out_of_range":         "Hors limites",
		"before_issue_date":    "Ne peut pas précéder la date d'émission",
		"no_line_items":        "Au moins une ligne est requise",
		"email_taken":          "Adresse e-mail déjà utilisée",
		"invoice_not_payable":  "Facture non payable",
		"invoice_mismatch":     "La facture n'appartient pas à ce client",
		"not_found":            "Introuvable",
		// flashes
		"password_changed":      "Mot de passe modifié",
		"password_mismatch":     "Les mots de passe ne correspondent pas",
		"password_invalid":      "Mot de passe actuel incorrect",
		"password_too_short":    "Le mot de passe doit faire au moins 8 caractères",
		"invalid_credentials":   "Identifiants invalides",
		"profile_saved":         "Profil enregistré",
		"settings_saved":        "Paramètres enregistrés",
		"saved":                 "Enregistré",
		"deleted":               "Supprimé",
		"locked":                "Document verrouillé",
		"status_changed":        "Statut mis à jour",
		"invalid_transition":    "Changement de statut impossible",
		"pdf_generation_failed": "La génération du PDF a échoué",
		"forbidden":             "Accès refusé",
		"balance":               "Reste à payer",
		"fixed_role":            "Rôle fixe : toutes les permissions",
		"unauthorized":          "Connexion requise",
		"validation_failed":     "Le formulaire contient des erreurs",
		"duplicate_number":      "Numéro déjà utilisé, réessayez",
		"role_changed":          "Rôle modifié",
		"user_invited":          "Utilisateur ajouté",
		// ui
		"app_name":       "Facturation",
		"dashboard":      "Tableau de bord",
		"clients":        "Clients",
		"client":         "Client",
		"invoices":       "Factures",
		"invoice":        "Facture",
		"quotes":         "Devis",
		"quote":          "Devis",
		"receipts":       "Reçus",
		"receipt":        "Reçu",
		"settings":       "Paramètres",
		"profile":        "Profil",
		"audit":          "Journal",
		"users":          "Utilisateurs",
		"roles":          "Rôles",
		"login":          "Connexion",
		"logout":         "Déconnexion",
		"signup":         "Inscription",
		"email":          "E-mail",
		"password":       "Mot de passe",
		"name":           "Nom",
		"phone":          "Téléphone",
		"company":        "Entreprise",
		"company_setup":  "Créer votre entreprise",
		"new":            "Nouveau",
		"edit":           "Modifier",
		"delete":         "Supprimer",
		"save":           "Enregistrer",
		"search":         "Rechercher",
		"status":         "Statut",
		"number":         "Numéro",
		"issue_date":     "Date d'émission",
		"due_date":       "Échéance",
		"valid_until":    "Valable jusqu'au",
		"description":    "Description",
		"quantity":       "Quantité",
		"unit_price":     "Prix unitaire",
		"discount":       "Remise",
		"subtotal":       "Sous-total",
		"tax":            "Taxe",
		"total":          "Total",
		"amount_paid":    "Montant payé",
		"payment_method": "Moyen de paiement",
		"download_pdf":   "Télécharger le PDF",
		"lock":           "Verrouiller",
		"export":         "Exporter",
		"previous":       "Précédent",
		"next":           "Suivant",
		"outstanding":    "Encours",
		"received":       "Encaissé",
		"overdue":        "En retard",
		"pending":        "Brouillons",

		"notes":                 "Notes",
		"tax_rate":              "Taux de TVA (%)",
		"discount_rate":         "Remise globale (%)",
		"currency":              "Devise",
		"payment_terms":         "Délai de paiement (jours)",
		"reference_number":      "Référence",
		"address":               "Adresse",
		"address_line1":         "Adresse",
		"address_line2":         "Complément d'adresse",
		"city":                  "Ville",
		"state":                 "Région",
		"postal_code":           "Code postal",
		"country":               "Pays",
		"tax_number":            "N° de TVA",
		"registration_number":   "SIRET",
		"website":               "Site web",
		"logo_url":              "URL du logo",
		"primary_color":         "Couleur principale",
		"secondary_color":       "Couleur secondaire",
		"accent_color":          "Couleur d'accent",
		"font_family":           "Police",
		"invoice_prefix":        "Préfixe des factures",
		"quote_prefix":          "Préfixe des devis",
		"receipt_prefix":        "Préfixe des reçus",
		"default_tax_rate":      "TVA par défaut (%)",
		"default_discount_rate": "Remise par défaut (%)",
		"default_payment_terms": "Délai de paiement par défaut",
		"company_name":          "Société",
		"role":                  "Rôle",
		"actions":               "Actions",
		"date":                  "Date",
		"user":                  "Utilisateur",
		"details":               "Détails",
		"current_password":      "Mot de passe actuel",
		"new_password":          "Nouveau mot de passe",
		"confirm_password":      "Confirmer le mot de passe",
		"change_password":       "Changer le mot de passe",
		"add_item":              "Ajouter une ligne",
		"no_results":            "Aucun résultat",
		"recent":                "Récents",
		"view":                  "Voir",
		"cancel":                "Annuler",
		"back":                  "Retour",
		"items":                 "Lignes",
		"permissions":           "Permissions",
		"error":                 "Erreur",
		"email_exists":          "Cette adresse e-mail est déjà utilisée",
		"no_company":            "Configurez d'abord votre société",
		"already_configured":    "La société est déjà configurée",
		"internal_error":        "Erreur interne",
		"payment_cash":          "Espèces",
		"payment_bank_transfer": "Virement",
		"payment_card":          "Carte",
		"payment_check":         "Chèque",
		"payment_other":         "Autre",
		"locked_at":             "Verrouillé le",
		"created_by":            "Créé par",
		"all_statuses":          "Tous les statuts",
		"linked_invoice":        "Facture liée",
		"new_client":            "Nouveau client",
		"existing_client":       "Client existant",
		"entity":                "Objet",
		"ip_address":            "Adresse IP",
		"invite":                "Inviter",
		"welcome":               "Bienvenue",
		"report_invoices":       "Export des factures",
		// statuses
		"status_draft":          "Brouillon",
		"status_sent":           "Envoyé",
		"status_viewed":         "Consulté",
		"status_paid":           "Payé",
		"status_partially_paid": "Partiellement payé",
		"status_overdue":        "En retard",
		"status_cancelled":      "Annulé",
		"status_accepted":       "Accepté",
		"status_declined":       "Refusé",
	},
	"en": {
		"required":             "Required",
		"invalid":              "Invalid",
		"invalid_email":        "Invalid email address",
		"invalid_format":       "Invalid format",
		"invalid_url":          "Invalid URL",
		"invalid_length":       "Invalid length",
		"invalid_choice":       "Invalid choice",
		"invalid_color":        "Expected a hex color (#RRGGBB)",
		"invalid_prefix":       "1 to 10 letters or digits",
		"invalid_date":         "Invalid date",
		"invalid_number":       "Invalid number",
		"too_long":             "Too long",
		"too_short":            "Too short",
		"must_be_positive":     "Must be positive",
		"must_not_be_negative": "Cannot be negative",
		"out_of_range":         "Out of range",
		"before_issue_date":    "Cannot be before the issue date",
		"no_line_items":        "At least one line item is required",
		"email_taken":          "Email already in use",
		"invoice_not_payable":  "Invoice is not payable",
		"invoice_mismatch":     "Invoice does not belong to this client",
		"not_found":            "Not found",

		"password_changed":      "Password changed",
		"password_mismatch":     "Passwords do not match",
		"password_invalid":      "Current password is incorrect",
		"password_too_short":    "Password must be at least 8 characters",
		"invalid_credentials":   "Invalid credentials",
		"profile_saved":         "Profile saved",
		"settings_saved":        "Settings saved",
		"saved":                 "Saved",
		"deleted":               "Deleted",
		"locked":                "Document locked",
		"status_changed":        "Status updated",
		"invalid_transition":    "Status change not allowed",
		"pdf_generation_failed": "PDF generation failed",
		"forbidden":             "Access denied",
		"balance":               "Balance due",
		"fixed_role":            "Fixed role: every permission",
		"unauthorized":          "Sign in required",
		"validation_failed":     "The form contains errors",
		"duplicate_number":      "Number already used, please retry",
		"role_changed":          "Role changed",
		"user_invited":          "User added",

		"app_name":       "Billing",
		"dashboard":      "Dashboard",
		"clients":        "Clients",
		"client":         "Client",
		"invoices":       "Invoices",
		"invoice":        "Invoice",
		"quotes":         "Quotes",
		"quote":          "Quote",
		"receipts":       "Receipts",
		"receipt":        "Receipt",
		"settings":       "Settings",
		"profile":        "Profile",
		"audit":          "Audit log",
		"users":          "Users",
		"roles":          "Roles",
		"login":          "Log in",
		"logout":         "Log out",
		"signup":         "Sign up",
		"email":          "Email",
		"password":       "Password",
		"name":           "Name",
		"phone":          "Phone",
		"company":        "Company",
		"company_setup":  "Set up your company",
		"new":            "New",
		"edit":           "Edit",
		"delete":         "Delete",
		"save":           "Save",
		"search":         "Search",
		"status":         "Status",
		"number":         "Number",
		"issue_date":     "Issue date",
		"due_date":       "Due date",
		"valid_until":    "Valid until",
		"description":    "Description",
		"quantity":       "Quantity",
		"unit_price":     "Unit price",
		"discount":       "Discount",
		"subtotal":       "Subtotal",
		"tax":            "Tax",
		"total":          "Total",
		"amount_paid":    "Amount paid",
		"payment_method": "Payment method",
		"download_pdf":   "Download PDF",
		"lock":           "Lock",
		"export":         "Export",
		"previous":       "Previous",
		"next":           "Next",
		"outstanding":    "Outstanding",
		"received":       "Received",
		"overdue":        "Overdue",
		"pending":        "Drafts",

		"notes":                 "Notes",
		"tax_rate":              "Tax rate (%)",
		"discount_rate":         "Overall discount (%)",
		"currency":              "Currency",
		"payment_terms":         "Payment terms (days)",
		"reference_number":      "Reference",
		"address":               "Address",
		"address_line1":         "Address",
		"address_line2":         "Address line 2",
		"city":                  "City",
		"state":                 "State",
		"postal_code":           "Postal code",
		"country":               "Country",
		"tax_number":            "Tax number",
		"registration_number":   "Registration number",
		"website":               "Website",
		"logo_url":              "Logo URL",
		"primary_color":         "Primary color",
		"secondary_color":       "Secondary color",
		"accent_color":          "Accent color",
		"font_family":           "Font",
		"invoice_prefix":        "Invoice prefix",
		"quote_prefix":          "Quote prefix",
		"receipt_prefix":        "Receipt prefix",
		"default_tax_rate":      "Default tax rate (%)",
		"default_discount_rate": "Default discount (%)",
		"default_payment_terms": "Default payment terms",
		"company_name":          "Company",
		"role":                  "Role",
		"actions":               "Actions",
		"date":                  "Date",
		"user":                  "User",
		"details":               "Details",
		"current_password":      "Current password",
		"new_password":          "New password",
		"confirm_password":      "Confirm password",
		"change_password":       "Change password",
		"add_item":              "Add line",
		"no_results":            "No results",
		"recent":                "Recent",
		"view":                  "View",
		"cancel":                "Cancel",
		"back":                  "Back",
		"items":                 "Line items",
		"permissions":           "Permissions",
		"error":                 "Error",
		"email_exists":          "This email is already registered",
		"no_company":            "Set up your company first",
		"already_configured":    "Company is already configured",
		"internal_error":        "Internal error",
		"payment_cash":          "Cash",
		"payment_bank_transfer": "Bank transfer",
		"payment_card":          "Card",
		"payment_check":         "Check",
		"payment_other":         "Other",
		"locked_at":             "Locked at",
		"created_by":            "Created by",
		"all_statuses":          "All statuses",
		"linked_invoice":        "Linked invoice",
		"new_client":            "New client",
		"existing_client":       "Existing client",
		"entity":                "Entity",
		"ip_address":            "IP address",
		"invite":                "Invite",
		"welcome":               "Welcome",
		"report_invoices":       "Invoice export",

		"status_draft":          "Draft",
		"status_sent":           "Sent",
		"status_viewed":         "Viewed",
		"status_paid":           "Paid",
		"status_partially_paid": "Partially paid",
		"status_overdue":        "Overdue",
		"status_cancelled":      "Cancelled",
		"status_accepted":       "Accepted",
		"status_declined":       "Declined",
	},
}

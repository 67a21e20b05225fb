package booking

import "strings"

// specialtyKeywords maps a coarse specialty tag to the service keywords that
// imply it. First matching specialty wins; order is fixed.
var specialtyKeywords = []struct {
	specialty string
	keywords  []string
}{
	{"vente", []string{"vente", "vendre", "achat", "acheter", "acquisition"}},
	{"location", []string{"location", "louer", "bail", "locataire"}},
	{"gestion", []string{"gestion", "gérer", "syndic", "copropriété"}},
	{"estimation", []string{"estimation", "estimer", "évaluation", "expertise"}},
	{"conseil", []string{"conseil", "accompagnement", "investissement", "financement"}},
}

// ClassifySpecialty maps a free-text service description to a specialty tag
// by keyword containment. It is a hint, not an authority: an empty return
// must degrade to the tenant's default distribution policy downstream.
func ClassifySpecialty(service string) string {
	service = strings.ToLower(strings.TrimSpace(service))
	if service == "" {
		return ""
	}
	for _, entry := range specialtyKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(service, kw) {
				return entry.specialty
			}
		}
	}
	return ""
}

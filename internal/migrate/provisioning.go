package migrate

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wolfeidau/orgflow/internal/store"
)

// aftDocument mirrors the account factory request file layout.
type aftDocument struct {
	ControlTowerParameters    controlTowerParameters `yaml:"control_tower_parameters"`
	AccountTags               map[string]string      `yaml:"account_tags,omitempty"`
	AccountCustomizationsName string                 `yaml:"account_customizations_name"`
	CustomFields              map[string]string      `yaml:"custom_fields,omitempty"`
}

type controlTowerParameters struct {
	AccountEmail              string `yaml:"AccountEmail"`
	AccountName               string `yaml:"AccountName"`
	ManagedOrganizationalUnit string `yaml:"ManagedOrganizationalUnit"`
	SSOUserEmail              string `yaml:"SSOUserEmail"`
	SSOUserFirstName          string `yaml:"SSOUserFirstName"`
	SSOUserLastName           string `yaml:"SSOUserLastName"`
}

// ProvisioningSpec renders the account factory request document for a
// ledger entry. The same document serves the dry-run preview and the file
// committed to the request repository.
func ProvisioningSpec(req *store.AccountRequest) ([]byte, error) {
	first, last := splitRequesterName(req.RequestedBy)

	doc := aftDocument{
		ControlTowerParameters: controlTowerParameters{
			AccountEmail:              req.Email,
			AccountName:               req.Name,
			ManagedOrganizationalUnit: req.TargetOU,
			SSOUserEmail:              req.Email,
			SSOUserFirstName:          first,
			SSOUserLastName:           last,
		},
		AccountTags: map[string]string{
			"client_id":  req.ClientID,
			"request_id": req.RequestID,
		},
		AccountCustomizationsName: "migration-customization",
		CustomFields:              req.Customizations,
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render provisioning spec: %w", err)
	}

	return data, nil
}

// splitRequesterName derives SSO first and last names from the requester
// field, which is usually an email address or a full name.
func splitRequesterName(requestedBy string) (string, string) {
	name := requestedBy
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}

	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '.' || r == '_' || r == '-'
	})

	switch len(parts) {
	case 0:
		return "Cloud", "Admin"
	case 1:
		return capitalize(parts[0]), "Admin"
	default:
		return capitalize(parts[0]), capitalize(parts[len(parts)-1])
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

package proof

import "fmt"

// Attribute is one NFT metadata trait
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

// Metadata describes a login milestone token
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
	ExternalURL string      `json:"external_url"`
}

// Milestone builds the metadata commemorating loginCount sign-ins by address
func Milestone(loginCount int, address string) Metadata {
	return Metadata{
		Name:        fmt.Sprintf("Wallet2FA Login #%d", loginCount),
		Description: fmt.Sprintf("Commemorates %d successful wallet authentications using Wallet2FA", loginCount),
		Image:       fmt.Sprintf("https://api.dicebear.com/7.x/shapes/svg?seed=%s&backgroundColor=gradient", address),
		Attributes: []Attribute{
			{TraitType: "Total Logins", Value: loginCount},
			{TraitType: "Milestone", Value: fmt.Sprintf("%d Logins", loginCount)},
			{TraitType: "Authentication Method", Value: "Wallet Signature"},
			{TraitType: "Privacy Level", Value: "ZK-Enhanced"},
		},
		ExternalURL: fmt.Sprintf("https://wallet2fa.app/user/%s", address),
	}
}

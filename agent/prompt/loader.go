package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/policy.txt
	policyRaw string

	//go:embed template/vendor_scope.txt
	vendorScopeRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Policy      string
	VendorScope string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Policy:      strings.TrimSpace(policyRaw),
		VendorScope: strings.TrimSpace(vendorScopeRaw),
	}
}

// System composes the system message for a turn: policy, the vendor-scope
// notice when the conversation is vendor-scoped, then the agent persona.
func (p PromptSet) System(vendorScoped bool, persona string) string {
	var b strings.Builder
	b.WriteString(p.Policy)
	if vendorScoped && p.VendorScope != "" {
		b.WriteString("\n")
		b.WriteString(p.VendorScope)
	}
	if persona = strings.TrimSpace(persona); persona != "" {
		b.WriteString("\n")
		b.WriteString(persona)
	}
	return b.String()
}

package relevance

import "strings"

// Identity carries the configured identities relevance scoring compares
// documents against, mirroring spec.md §4.7 is_current_user rules.
type Identity struct {
	GitHubUsername string
	JiraUsername   string
	GoogleEmail    string
	CompanyDomains []string
}

var freeMailDomains = map[string]bool{
	"gmail.com":   true,
	"yahoo.com":   true,
	"hotmail.com": true,
	"outlook.com": true,
	"aol.com":     true,
}

// isCurrentUser case-insensitively compares value against the identity
// configured for source.
func (id Identity) isCurrentUser(source string, value string) bool {
	if value == "" {
		return false
	}
	var want string
	switch source {
	case "github":
		want = id.GitHubUsername
	case "jira":
		want = id.JiraUsername
	default:
		want = id.GoogleEmail
		if want == "" {
			want = id.JiraUsername
		}
	}
	if want == "" {
		return false
	}
	return strings.EqualFold(want, value)
}

// isInternal reports whether from's domain is a company domain. With no
// companyDomains configured, falls back to "not a well-known free mail
// provider" per spec.md §4.7.
func (id Identity) isInternal(from string) bool {
	domain := domainOf(from)
	if domain == "" {
		return false
	}
	if len(id.CompanyDomains) > 0 {
		for _, d := range id.CompanyDomains {
			if strings.EqualFold(d, domain) {
				return true
			}
		}
		return false
	}
	return !freeMailDomains[strings.ToLower(domain)]
}

func domainOf(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	domain := addr[at+1:]
	domain = strings.TrimSuffix(domain, ">")
	return strings.ToLower(strings.TrimSpace(domain))
}

package service

import "strings"

// BanDescription is the parsed form of a ban or unban modlog description,
// "<duration>: <reason>".
type BanDescription struct {
	Permanent bool
	Nuke      bool
	Reason    string
}

// ParseBanDescription reads the duration and reason of a ban description. A
// duration starting with "0 day" is permanent. A "nuke" token in the duration,
// or as the first colon-separated field of the reason, marks a nuke ban.
func ParseBanDescription(desc string) BanDescription {
	out := BanDescription{Permanent: strings.HasPrefix(desc, "0 day")}

	duration, reason, found := strings.Cut(desc, ":")
	if !found {
		out.Nuke = strings.Contains(duration, "nuke")
		out.Reason = strings.TrimSpace(desc)
		return out
	}

	out.Nuke = strings.Contains(duration, "nuke")
	reason = strings.TrimSpace(reason)
	if head, rest, ok := strings.Cut(reason, ":"); ok && strings.TrimSpace(head) == "nuke" {
		out.Nuke = true
		reason = strings.TrimSpace(rest)
	}
	out.Reason = reason
	return out
}

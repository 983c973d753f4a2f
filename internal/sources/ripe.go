package sources

import "whoisindex/internal/ingest"

// RIPE covers RPSL split dumps as published by RIPE, APNIC and AFRINIC.
func RIPE() ingest.Source {
	contacts := lists("admin-c", "tech-c", "mnt-by", "org")
	return ingest.Source{
		Name: "ripe",
		Schemas: map[string]ingest.Schema{
			"^inetnum": {
				RangeAttr: "inetnum",
				Lists:     append(lists("netname", "descr", "country"), contacts...),
			},
			"^inet6num": {
				RangeAttr: "inet6num",
				Lists:     append(lists("netname", "descr", "country"), contacts...),
			},
			"^route": {
				RangeAttr:      "route",
				NetworkKeyAttr: "origin",
				Lists:          lists("origin", "descr", "mnt-by"),
			},
			"^route6": {
				RangeAttr:      "route6",
				NetworkKeyAttr: "origin",
				Lists:          lists("origin", "descr", "mnt-by"),
			},
			"^aut-num": {
				Lists: append(lists("as-name", "descr"), contacts...),
			},
			"^organisation": {
				Lists: lists("org-name", "address", "mnt-by"),
			},
			"^person": {Lists: lists("nic-hdl", "address", "phone", "e-mail")},
			"^role":   {Lists: lists("nic-hdl", "address", "phone", "e-mail")},
			"^mntner": {Lists: lists("descr", "admin-c", "upd-to")},
		},
		Helpers: reverseHelpers{attrs: []string{"mnt-by", "admin-c", "tech-c", "org"}},
	}
}

package sources

import "whoisindex/internal/ingest"

// ARIN covers the ARIN bulk whois text format.
func ARIN() ingest.Source {
	return ingest.Source{
		Name: "arin",
		Schemas: map[string]ingest.Schema{
			"^NetHandle": {
				RangeAttr:      "NetRange",
				NetworkKeyAttr: "NetName",
				Lists:          lists("NetName", "OrgID", "Parent", "NetType", "OriginAS"),
			},
			"^V6NetHandle": {
				RangeAttr:      "NetRange",
				NetworkKeyAttr: "NetName",
				Lists:          lists("NetName", "OrgID", "Parent", "NetType", "OriginAS"),
			},
			"^OrgID": {
				Lists: lists("OrgName", "City", "Country", "OrgAdminHandle", "OrgTechHandle", "OrgAbuseHandle"),
			},
			"^ASHandle": {
				Lists: lists("ASName", "OrgID"),
			},
			"^POCHandle": {
				Lists: lists("FirstName", "LastName", "Email", "Phone"),
			},
		},
		Helpers: reverseHelpers{attrs: []string{"OrgID", "Parent"}},
	}
}

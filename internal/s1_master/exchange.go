package s1_master

import "strings"

// NormalizeExchange maps provider exchange names and MIC codes onto the
// short listing codes the master list criteria use (NMS, NGM, NCM, NYQ, ASE)
func NormalizeExchange(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))

	switch {
	case s == "":
		return ""
	case s == "XNAS":
		return "NMS"
	case s == "XNYS":
		return "NYQ"
	case s == "XASE":
		return "ASE"
	case strings.HasPrefix(s, "NASDAQ"):
		switch {
		case strings.Contains(s, "CAPITAL MARKET") || strings.Contains(s, "NCM"):
			return "NCM"
		case strings.Contains(s, "NGM"):
			return "NGM"
		default:
			return "NMS"
		}
	case strings.Contains(s, "NYSE MKT") || strings.Contains(s, "AMERICAN"):
		return "ASE"
	case strings.HasPrefix(s, "NEW YORK") || strings.HasPrefix(s, "NYSE"):
		return "NYQ"
	}
	return s
}

package availability

import (
	"regexp"
	"sort"
	"strings"
)

var ordinalPrefix = regexp.MustCompile(`^\d+\.\s*`)

// StripOrdinal removes a leading "<digits>." prefix such as "01. ".
func StripOrdinal(token string) string {
	return ordinalPrefix.ReplaceAllString(token, "")
}

// SplitClusters splits a comma separated cluster cell into cleaned tokens. An
// empty cell yields a single empty token so the row survives expansion.
func SplitClusters(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, StripOrdinal(strings.TrimSpace(part)))
	}
	return out
}

// ExpandClusters returns one record per cluster token of each record. Without
// a cluster column every record is kept once with a nil membership. Expanded
// logs repeat dates, so day counts must dedupe by date.
func ExpandClusters(log Log) Log {
	out := log
	if !log.HasColumn(ColCluster) {
		out.Records = make([]Record, len(log.Records))
		for i, record := range log.Records {
			record.ClusterMember = nil
			out.Records[i] = record
		}
		return out
	}

	out.Records = make([]Record, 0, len(log.Records))
	for _, record := range log.Records {
		for _, token := range SplitClusters(record.Cluster) {
			expanded := record
			member := token
			expanded.ClusterMember = &member
			out.Records = append(out.Records, expanded)
		}
	}
	return out
}

// Clusters lists the distinct non-empty cluster memberships, sorted.
func Clusters(log Log) []string {
	seen := map[string]bool{}
	for _, record := range log.Records {
		if record.ClusterMember == nil || *record.ClusterMember == "" {
			continue
		}
		seen[*record.ClusterMember] = true
	}
	out := make([]string, 0, len(seen))
	for cluster := range seen {
		out = append(out, cluster)
	}
	sort.Strings(out)
	return out
}

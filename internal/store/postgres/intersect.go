package postgres

import (
	"sort"
	"time"
)

// workflowAssoc is one granule↔workflow association row, carrying the
// execution timestamp and surrogate key used for ordering.
type workflowAssoc struct {
	GranuleCumulusID   int64
	WorkflowName       string
	Timestamp          time.Time
	ExecutionCumulusID int64
}

// intersectWorkflows computes the set of workflow names associated with
// every one of the given granules. The result is ordered by each workflow's
// most recent association timestamp, most recent first, with surrogate key
// descending as the tie-break. The ordering is a contract, kept here as an
// explicit selection function rather than an incidental property of a query
// plan.
func intersectWorkflows(assocs []workflowAssoc, granuleCumulusIDs []int64) []string {
	if len(granuleCumulusIDs) == 0 {
		return nil
	}

	type workflowStat struct {
		name     string
		granules map[int64]bool
		newest   time.Time
		newestID int64
	}

	stats := make(map[string]*workflowStat)
	for _, a := range assocs {
		st, ok := stats[a.WorkflowName]
		if !ok {
			st = &workflowStat{name: a.WorkflowName, granules: make(map[int64]bool)}
			stats[a.WorkflowName] = st
		}
		st.granules[a.GranuleCumulusID] = true
		if a.Timestamp.After(st.newest) ||
			(a.Timestamp.Equal(st.newest) && a.ExecutionCumulusID > st.newestID) {
			st.newest = a.Timestamp
			st.newestID = a.ExecutionCumulusID
		}
	}

	distinct := make(map[int64]bool, len(granuleCumulusIDs))
	for _, id := range granuleCumulusIDs {
		distinct[id] = true
	}

	var common []*workflowStat
	for _, st := range stats {
		if len(st.granules) == len(distinct) {
			common = append(common, st)
		}
	}

	sort.Slice(common, func(i, j int) bool {
		if !common[i].newest.Equal(common[j].newest) {
			return common[i].newest.After(common[j].newest)
		}
		return common[i].newestID > common[j].newestID
	})

	names := make([]string, 0, len(common))
	for _, st := range common {
		names = append(names, st.name)
	}
	return names
}

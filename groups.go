package clamser

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ZaneKhartabill/clamser/oxymax"
)

// CycleFilter restricts a grouped analysis to one side of the light cycle.
type CycleFilter string

const (
	CycleAll   CycleFilter = "all"
	CycleLight CycleFilter = "light"
	CycleDark  CycleFilter = "dark"
)

// GroupAssignment binds one cage (and its subject) to a treatment group.
// Supplied by the caller, one entry per cage.
type GroupAssignment struct {
	Group     string
	CageID    string
	SubjectID string
}

// GroupOptions configures a grouped analysis.
type GroupOptions struct {
	Cycle CycleFilter // defaults to CycleAll
}

// SubjectMean is one subject's per-subject average, the unit of
// observation for all group-level statistics.
type SubjectMean struct {
	CageID    string
	SubjectID string
	Mean      float64
	Readings  int
}

// GroupStats summarizes one group over its subjects' per-subject means.
type GroupStats struct {
	Group    string
	N        int
	Mean     float64
	SD       float64
	SEM      float64
	CILow    float64 // 95% CI bounds; NaN when N < 2
	CIHigh   float64
	Subjects []SubjectMean
	Hourly   [24]float64 // group mean of subject-hour means, NaN when empty
}

// TestResult is the outcome of the between-group significance test.
type TestResult struct {
	Method    string // "welch_t" or "anova_oneway"
	Statistic float64
	DF        float64 // Welch degrees of freedom; ANOVA reports D1 here
	DF2       float64 // ANOVA denominator degrees of freedom
	PValue    float64
}

// GroupResult is the complete grouped analysis. When fewer than two
// subjects with data exist in any group, Test is nil and SkippedReason
// says why; the absence of a test is always explicit.
type GroupResult struct {
	Cycle           CycleFilter
	Groups          []GroupStats
	Test            *TestResult
	SkippedReason   string
	DroppedRecords  int      // records whose cage key had no assignment
	UnassignedCages []string // detected cages missing from the assignment table
}

// NormalizeCageKey reduces a cage identifier to the instrument's
// three-digit cage numbering: the numeric substring is extracted and
// values below 100 are lifted into the 100 range, so "01", "1" and
// "101" all share the key "101".
func NormalizeCageKey(id string) (string, bool) {
	digits := strings.Builder{}
	for _, r := range id {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return "", false
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return "", false
	}
	if n < 100 {
		n += 100
	}
	return strconv.Itoa(n), true
}

// AnalyzeGroups joins records against the assignment table on the
// normalized cage key and computes group statistics over per-subject
// means: each subject is averaged first, then the group is summarized
// over those means, so groups with more readings per subject or more
// subjects are not overweighted. Records with no matching assignment are
// dropped and counted. Two selected groups yield a Welch t-test, three
// or more a one-way ANOVA, both on the per-subject means.
func AnalyzeGroups(records []oxymax.Record, assignments []GroupAssignment, opts GroupOptions) (*GroupResult, error) {
	if len(assignments) == 0 {
		return nil, errors.New("no group assignments supplied")
	}
	cycle := opts.Cycle
	if cycle == "" {
		cycle = CycleAll
	}
	if cycle != CycleAll && cycle != CycleLight && cycle != CycleDark {
		return nil, fmt.Errorf("unknown cycle filter %q", opts.Cycle)
	}

	byKey := make(map[string]assignmentSlot, len(assignments))
	for _, a := range assignments {
		key, ok := NormalizeCageKey(a.CageID)
		if !ok {
			return nil, fmt.Errorf("assignment for %q has no numeric cage key", a.CageID)
		}
		if prev, dup := byKey[key]; dup {
			return nil, fmt.Errorf("cage %s assigned to both %q and %q", a.CageID, prev.group, a.Group)
		}
		byKey[key] = assignmentSlot{group: a.Group, subjectID: a.SubjectID}
	}

	subjectsByKey := make(map[string]*subjectAcc)
	dropped := 0
	unassigned := make(map[string]struct{})

	for _, r := range records {
		if cycle == CycleLight && !IsLight(r.Timestamp) {
			continue
		}
		if cycle == CycleDark && IsLight(r.Timestamp) {
			continue
		}
		key, ok := NormalizeCageKey(r.CageID)
		if !ok {
			dropped++
			continue
		}
		assigned, ok := byKey[key]
		if !ok {
			dropped++
			unassigned[r.CageID] = struct{}{}
			continue
		}
		acc, ok := subjectsByKey[key]
		if !ok {
			acc = &subjectAcc{
				group:     assigned.group,
				cageID:    r.CageID,
				subjectID: assigned.subjectID,
				byHour:    make(map[int][]float64),
			}
			subjectsByKey[key] = acc
		}
		acc.values = append(acc.values, r.Value)
		h := HourOf(r)
		acc.byHour[h] = append(acc.byHour[h], r.Value)
	}

	if len(subjectsByKey) == 0 {
		return nil, errors.New("no records matched any group assignment")
	}

	groupSubjects := make(map[string][]*subjectAcc)
	for _, acc := range subjectsByKey {
		groupSubjects[acc.group] = append(groupSubjects[acc.group], acc)
	}
	groupNames := make([]string, 0, len(groupSubjects))
	for name := range groupSubjects {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)

	result := &GroupResult{Cycle: cycle, DroppedRecords: dropped}
	for cage := range unassigned {
		result.UnassignedCages = append(result.UnassignedCages, cage)
	}
	sort.Strings(result.UnassignedCages)

	perGroupMeans := make([][]float64, 0, len(groupNames))
	for _, name := range groupNames {
		accs := groupSubjects[name]
		sort.Slice(accs, func(i, j int) bool { return accs[i].cageID < accs[j].cageID })

		gs := GroupStats{Group: name}
		means := make([]float64, 0, len(accs))
		for _, acc := range accs {
			m := stat.Mean(acc.values, nil)
			gs.Subjects = append(gs.Subjects, SubjectMean{
				CageID:    acc.cageID,
				SubjectID: acc.subjectID,
				Mean:      m,
				Readings:  len(acc.values),
			})
			means = append(means, m)
		}
		gs.N = len(means)
		gs.Mean = stat.Mean(means, nil)
		if gs.N >= 2 {
			gs.SD = stat.StdDev(means, nil)
			gs.SEM = gs.SD / math.Sqrt(float64(gs.N))
			tCrit := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(gs.N - 1)}.Quantile(0.975)
			gs.CILow = gs.Mean - tCrit*gs.SEM
			gs.CIHigh = gs.Mean + tCrit*gs.SEM
		} else {
			gs.SD = math.NaN()
			gs.SEM = math.NaN()
			gs.CILow = math.NaN()
			gs.CIHigh = math.NaN()
		}
		gs.Hourly = groupHourlyMeans(accs)

		result.Groups = append(result.Groups, gs)
		perGroupMeans = append(perGroupMeans, means)
	}

	if len(perGroupMeans) < 2 {
		result.SkippedReason = "significance test needs at least two groups"
		return result, nil
	}
	for i, means := range perGroupMeans {
		if len(means) < 2 {
			result.SkippedReason = fmt.Sprintf("group %q has fewer than two subjects with data", groupNames[i])
			return result, nil
		}
	}

	if len(perGroupMeans) == 2 {
		result.Test = welchTTest(perGroupMeans[0], perGroupMeans[1])
	} else {
		result.Test = oneWayANOVA(perGroupMeans)
	}
	return result, nil
}

type assignmentSlot struct {
	group     string
	subjectID string
}

type subjectAcc struct {
	group     string
	cageID    string
	subjectID string
	values    []float64
	byHour    map[int][]float64
}

// groupHourlyMeans averages subject-hour means across subjects, keeping
// the reading -> subject -> group averaging order.
func groupHourlyMeans(accs []*subjectAcc) [24]float64 {
	var out [24]float64
	for h := 0; h < 24; h++ {
		subjectMeans := make([]float64, 0, len(accs))
		for _, acc := range accs {
			vals := acc.byHour[h]
			if len(vals) == 0 {
				continue
			}
			subjectMeans = append(subjectMeans, stat.Mean(vals, nil))
		}
		if len(subjectMeans) == 0 {
			out[h] = math.NaN()
			continue
		}
		out[h] = stat.Mean(subjectMeans, nil)
	}
	return out
}

// welchTTest is the two-sample unequal-variance t-test on per-subject
// means, with Welch-Satterthwaite degrees of freedom.
func welchTTest(a, b []float64) *TestResult {
	na, nb := float64(len(a)), float64(len(b))
	ma, mb := stat.Mean(a, nil), stat.Mean(b, nil)
	va, vb := stat.Variance(a, nil), stat.Variance(b, nil)

	se2 := va/na + vb/nb
	if se2 == 0 {
		return &TestResult{Method: "welch_t", Statistic: 0, DF: na + nb - 2, PValue: 1}
	}
	t := (ma - mb) / math.Sqrt(se2)
	df := se2 * se2 / ((va*va)/(na*na*(na-1)) + (vb*vb)/(nb*nb*(nb-1)))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * (1 - dist.CDF(math.Abs(t)))
	return &TestResult{Method: "welch_t", Statistic: t, DF: df, PValue: p}
}

// oneWayANOVA is the equal-weight, uncorrected one-way ANOVA over
// per-subject means grouped by group.
func oneWayANOVA(groups [][]float64) *TestResult {
	k := len(groups)
	total := 0
	all := make([]float64, 0)
	for _, g := range groups {
		total += len(g)
		all = append(all, g...)
	}
	grand := stat.Mean(all, nil)

	ssBetween := 0.0
	ssWithin := 0.0
	for _, g := range groups {
		m := stat.Mean(g, nil)
		ssBetween += float64(len(g)) * (m - grand) * (m - grand)
		for _, v := range g {
			ssWithin += (v - m) * (v - m)
		}
	}

	df1 := float64(k - 1)
	df2 := float64(total - k)
	if ssWithin == 0 || df2 <= 0 {
		return &TestResult{Method: "anova_oneway", Statistic: math.Inf(1), DF: df1, DF2: df2, PValue: 0}
	}
	f := (ssBetween / df1) / (ssWithin / df2)
	dist := distuv.F{D1: df1, D2: df2}
	p := 1 - dist.CDF(f)
	return &TestResult{Method: "anova_oneway", Statistic: f, DF: df1, DF2: df2, PValue: p}
}

package query

import (
	"sort"

	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/graph"
)

// gradeThresholds are the A-F cyclomatic-complexity bands of §4.6.8,
// computed as branches+conditions+loops+1 (the standard McCabe
// approximation).
var gradeThresholds = []struct {
	max   int
	grade string
}{
	{5, "A"}, {10, "B"}, {20, "C"}, {35, "D"}, {50, "E"},
}

func gradeFor(cc int) string {
	for _, t := range gradeThresholds {
		if cc <= t.max {
			return t.grade
		}
	}
	return "F"
}

func cyclomaticComplexity(m api.ComplexityMetrics) int {
	return 1 + m.Branches + m.Conditions + m.Loops
}

// Complexity answers §4.6.8: per-function grades, and a file summary
// when req.FilePath is set.
func (e *Engine) Complexity(req api.ComplexityRequest) (api.ComplexityResponse, error) {
	e.Store.RLock()
	defer e.Store.RUnlock()

	var candidateIDs []uint64
	if req.FilePath != "" {
		candidateIDs = e.nodesInFile(req.FilePath)
	} else {
		candidateIDs = append(candidateIDs, e.Store.BySymbolKind(api.KindFunction)...)
		candidateIDs = append(candidateIDs, e.Store.BySymbolKind(api.KindMethod)...)
	}

	var resp api.ComplexityResponse
	worstRank := -1
	var worstGrade string
	totalLoc := 0
	gradeSum := 0
	gradeCount := 0

	for _, id := range dedupIDs(candidateIDs) {
		n, err := e.Store.GetNode(id)
		if err != nil || n.Kind != graph.NodeSymbol {
			continue
		}
		if n.SymbolKind != api.KindFunction && n.SymbolKind != api.KindMethod {
			continue
		}
		cc := cyclomaticComplexity(n.Complexity)
		grade := gradeFor(cc)
		resp.Functions = append(resp.Functions, api.FunctionComplexity{
			Node:    toNodeView(n),
			Metrics: n.Complexity,
			Grade:   grade,
		})
		totalLoc += n.Complexity.LinesOfCode
		rank := gradeRank(grade)
		gradeSum += rank
		gradeCount++
		if rank > worstRank {
			worstRank = rank
			worstGrade = grade
		}
	}

	sort.Slice(resp.Functions, func(i, j int) bool { return resp.Functions[i].Node.ID < resp.Functions[j].Node.ID })

	if req.FilePath != "" && gradeCount > 0 {
		resp.FileSummary = &api.FileComplexitySummary{
			FilePath:         req.FilePath,
			AverageGrade:     gradeFromRank(gradeSum / gradeCount),
			TotalLinesOfCode: totalLoc,
			WorstGrade:       worstGrade,
		}
	}

	return resp, nil
}

func gradeRank(g string) int {
	switch g {
	case "A":
		return 0
	case "B":
		return 1
	case "C":
		return 2
	case "D":
		return 3
	case "E":
		return 4
	default:
		return 5
	}
}

func gradeFromRank(r int) string {
	grades := []string{"A", "B", "C", "D", "E", "F"}
	if r < 0 || r >= len(grades) {
		return "F"
	}
	return grades[r]
}

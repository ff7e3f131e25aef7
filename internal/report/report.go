// Package report renders the HTML audit report by substituting named
// placeholders in an external template. The template technology is the
// collaborator's concern; only the placeholder names are contract.
package report

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/ghost-audit/internal/dataset"
	"github.com/sells-group/ghost-audit/internal/impact"
	"github.com/sells-group/ghost-audit/internal/risk"
)

// Risk-tier cutoffs for the report table.
const (
	tierHighAbove   = 0.8
	tierMediumAbove = 0.6
)

var (
	printer = message.NewPrinter(language.English)
	titler  = cases.Title(language.English)
)

// Generate reads the template, substitutes every placeholder, and writes
// the final report. A missing template is fatal for this stage only:
// the analytical artifacts written by earlier stages remain valid.
func Generate(templatePath, outputPath string, summary *risk.Summary, finalIndex *dataset.Table, metrics impact.Metrics, topN int, now time.Time) error {
	tmpl, err := os.ReadFile(templatePath)
	if err != nil {
		return eris.Wrapf(err,
			"report: template not found at %s; restore the template file and rerun the report stage; earlier artifacts are unaffected", templatePath)
	}

	html := strings.NewReplacer(
		"{{ GENERATION_DATE }}", now.Format("2006-01-02 15:04:05"),
		"{{ ROC_AUC_SCORE }}", fmt.Sprintf("%.4f", summary.ROCAUC),
		"{{ FEATURE_IMPORTANCE_LIST_HTML }}", featureListHTML(summary.FeatureImportance),
		"{{ RISKY_PROJECTS_ROWS_HTML }}", riskyRowsHTML(finalIndex, topN),
		"{{ TOTAL_PORTFOLIO_LOAN_USD }}", printer.Sprintf("$%.0f", metrics.TotalPortfolioLoanUSD),
		"{{ PREDICTED_AT_RISK_LOAN_USD }}", printer.Sprintf("$%.0f", metrics.PredictedAtRiskLoanUSD),
		"{{ TOTAL_PORTFOLIO_CAPACITY_MW }}", printer.Sprintf("%.1f MW", metrics.TotalPortfolioCapacityMW),
		"{{ PREDICTED_AT_RISK_CAPACITY_MW }}", printer.Sprintf("%.1f MW", metrics.PredictedAtRiskCapacityMW),
		"{{ PERCENT_LOANS_AT_RISK }}", fmt.Sprintf("%.1f%%", metrics.PctLoansAtRisk*100),
		"{{ PERCENT_CAPACITY_AT_RISK }}", fmt.Sprintf("%.1f%%", metrics.PctCapacityAtRisk*100),
	).Replace(string(tmpl))

	if err := os.WriteFile(outputPath, []byte(html), 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", outputPath)
	}

	zap.L().Info("report generated", zap.String("path", outputPath))
	return nil
}

// featureListHTML renders the importances as list items, highest first.
func featureListHTML(importance map[string]float64) string {
	type fi struct {
		name  string
		value float64
	}
	items := make([]fi, 0, len(importance))
	for k, v := range importance {
		items = append(items, fi{name: k, value: v})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].value > items[j].value })

	var b strings.Builder
	for _, it := range items {
		display := titler.String(strings.ReplaceAll(it.name, "_", " "))
		fmt.Fprintf(&b,
			"<li class=\"flex justify-between\"><span>- %s:</span> <span class=\"font-bold text-green-700\">%.4f</span></li>\n",
			display, it.value)
	}
	return b.String()
}

// TierLabel maps a risk score to its report tier.
func TierLabel(score float64) string {
	switch {
	case score > tierHighAbove:
		return "High"
	case score > tierMediumAbove:
		return "Medium"
	default:
		return "Low"
	}
}

// TierClass maps a risk score to its report color class.
func TierClass(score float64) string {
	switch {
	case score > tierHighAbove:
		return "text-red-600"
	case score > tierMediumAbove:
		return "text-orange-600"
	default:
		return "text-green-600"
	}
}

func statusClass(status string) string {
	switch {
	case strings.Contains(status, "No Construction"), strings.Contains(status, "Flagged"):
		return "text-red-600"
	case strings.Contains(status, "Inactivity"):
		return "text-yellow-600"
	default:
		return "text-green-600"
	}
}

// riskyRowsHTML renders the top-N ranked rows, with a trailer row when
// the index holds more.
func riskyRowsHTML(finalIndex *dataset.Table, topN int) string {
	var b strings.Builder
	for i, r := range finalIndex.Rows {
		if i >= topN {
			break
		}
		score, _ := r.Float("ghost_risk_score")
		status := r.String("audit_status")
		projectID := r.String("project_id")
		if projectID == "" {
			projectID = "N/A"
		}

		fmt.Fprintf(&b, `
        <tr>
            <td class="px-6 py-4 whitespace-nowrap text-sm font-medium text-gray-900">%s</td>
            <td class="px-6 py-4 whitespace-nowrap text-sm text-gray-700">%s</td>
            <td class="px-6 py-4 whitespace-nowrap text-sm text-gray-500">%s</td>
            <td class="px-6 py-4 whitespace-nowrap text-sm %s font-bold">%.3f (%s)</td>
            <td class="px-6 py-4 whitespace-nowrap text-sm %s">%s</td>
        </tr>
`,
			projectID, r.String("project_name"), r.String("country"),
			TierClass(score), score, TierLabel(score),
			statusClass(status), status)
	}
	if finalIndex.Len() > topN {
		fmt.Fprintf(&b, `
        <tr class="text-sm italic text-gray-400">
            <td colspan="5" class="px-6 py-4 text-center">... showing top %d out of a total of %d projects ...</td>
        </tr>
`, topN, finalIndex.Len())
	}
	return b.String()
}

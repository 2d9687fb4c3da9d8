package order

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	totalPattern = regexp.MustCompile(`(?i)total\s+(?:del\s+pedido|a\s+pagar)\s*:\s*\$?\s*([\d,]+(?:\.\d+)?)`)
	leadingQty   = regexp.MustCompile(`^\d+`)
	itemLine     = regexp.MustCompile(`^\d+\s*[xX]\s*\S`)
)

// completionMarkers are the literal footers the web menu appends to a finished order.
var completionMarkers = []string{"Total del pedido:", "Total a pagar:"}

// Info is what the bot keeps from a pasted menu order.
type Info struct {
	Total   float64
	Summary string
}

// HasCompletionMarker reports whether text is a finished order pasted from the web menu.
func HasCompletionMarker(text string) bool {
	for _, marker := range completionMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// ExtractOrderInfo reads the total and the item block of a menu order.
// Without a total line the summary is a rough slice of the raw text.
func ExtractOrderInfo(text string) Info {
	lines := nonBlankLines(text)

	totalIdx := -1
	var total float64
	for i, line := range lines {
		if m := totalPattern.FindStringSubmatch(line); m != nil {
			totalIdx = i
			total = parseAmount(m[1])
			break
		}
	}

	if totalIdx < 0 {
		return Info{Total: 0, Summary: fallbackSummary(text)}
	}

	var items []string
	for i := 1; i < totalIdx; i++ {
		if looksLikeItem(lines[i]) {
			items = append(items, lines[i])
		}
	}
	return Info{Total: total, Summary: strings.Join(items, "\n")}
}

// ExtractItems keeps only quantity-prefixed product lines such as "2x Bubble Tea - $90.00".
func ExtractItems(text string) string {
	var items []string
	for _, line := range nonBlankLines(text) {
		if totalPattern.MatchString(line) {
			continue
		}
		if itemLine.MatchString(line) {
			items = append(items, line)
		}
	}
	return strings.Join(items, "\n")
}

func looksLikeItem(line string) bool {
	return strings.Contains(line, "x ") ||
		strings.Contains(line, "$") ||
		leadingQty.MatchString(line)
}

func fallbackSummary(text string) string {
	raw := strings.Split(text, "\n")
	if len(raw) <= 3 {
		return ""
	}
	return strings.TrimSpace(strings.Join(raw[1:len(raw)-2], "\n"))
}

func nonBlankLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

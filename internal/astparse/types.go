package astparse

// Function is one function or method extracted from a source file at a
// specific revision. Line numbers are 1-based and inclusive. Two Functions
// parsed from different revisions of the same logical function are distinct
// values; matching them up is a name-based join done by the caller.
type Function struct {
	Name       string   `json:"name"`
	StartLine  int      `json:"start_line"`
	EndLine    int      `json:"end_line"`
	ReturnType string   `json:"return_type"`
	Parameters []string `json:"parameters"`
	Signature  string   `json:"signature"`
}

// Size returns the number of source lines the function spans.
func (f Function) Size() int {
	return f.EndLine - f.StartLine + 1
}

// Body returns the function's source text given the full file content it was
// parsed from. Out-of-range spans yield an empty string.
func (f Function) Body(fileLines []string) string {
	if f.StartLine < 1 || f.EndLine > len(fileLines) || f.StartLine > f.EndLine {
		return ""
	}
	out := ""
	for i := f.StartLine - 1; i < f.EndLine; i++ {
		if i > f.StartLine-1 {
			out += "\n"
		}
		out += fileLines[i]
	}
	return out
}

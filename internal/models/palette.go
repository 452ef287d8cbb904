package models

// D3 is the default discrete palette. The first three entries color the
// viewers of axis 0, 1 and 2; the rest serve as the default overlay colormap.
var D3 = []string{
	"#1F77B4", "#FF7F0E", "#2CA02C", "#D62728", "#9467BD",
	"#8C564B", "#E377C2", "#7F7F7F", "#BCBD22", "#17BECF",
}

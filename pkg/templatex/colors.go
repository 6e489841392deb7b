package templatex

// Palette is cycled through by variable index.
var Palette = []string{
	"#3B82F6", // blue
	"#10B981", // emerald
	"#F59E0B", // amber
	"#EF4444", // red
	"#8B5CF6", // violet
	"#EC4899", // pink
	"#14B8A6", // teal
	"#F97316", // orange
	"#6366F1", // indigo
	"#84CC16", // lime
	"#06B6D4", // cyan
	"#A855F7", // purple
}

// VariableColor pairs a template variable with its highlight color. The
// variable name doubles as the label of any hint drawn in that color.
type VariableColor struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ColorMap assigns each variable a color by position. The same variable list
// always yields the same map.
func ColorMap(vars []string) map[string]string {
	out := make(map[string]string, len(vars))
	for i, v := range vars {
		out[v] = Palette[i%len(Palette)]
	}
	return out
}

// VariableColors is ColorMap in variable order.
func VariableColors(vars []string) []VariableColor {
	out := make([]VariableColor, len(vars))
	for i, v := range vars {
		out[i] = VariableColor{Name: v, Color: Palette[i%len(Palette)]}
	}
	return out
}

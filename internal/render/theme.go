package render

// Theme holds colors for schema rendering.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	// Edge colors by referenced kind.
	EdgeTable  string
	EdgeStruct string
	EdgeEnum   string
	EdgeVector string // vector-of references, any kind

	// Node accents.
	EnumFill     string
	LowFill      string // fallback (positional) mappings
	PartialFill  string // unresolved setter calls
	NoCreateFill string // tables without a create method
	ExternalText string // subtitles and referenced types not in the schema
}

// NASA is the NASA/Bauhaus theme: geometric, monochrome, sparse color.
var NASA = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EdgeTable:  "#424242", // dark gray
	EdgeStruct: "#00695C", // teal
	EdgeEnum:   "#0B3D91", // NASA blue
	EdgeVector: "#E65100", // deep orange

	EnumFill:     "#E3F2FD", // blue 50
	LowFill:      "#FFF3E0", // orange 50
	PartialFill:  "#FFEBEE", // red 50
	NoCreateFill: "#ECEFF1", // blue-gray 50
	ExternalText: "#9E9E9E",
}

package criteria

// Band is the qualitative verdict shown next to a percentage.
type Band struct {
	Color   string `json:"color"`
	Message string `json:"message"`
}

// KeepToYourself is the message of the lowest band, shown below 20%.
const KeepToYourself = "Keep it to yourself"

// bands are checked top-down; the first whose floor is met wins. The first
// entry only matches an exact 100.
var bands = []struct {
	min   int
	exact bool
	band  Band
}{
	{min: 100, exact: true, band: Band{Color: "#4CAF50", Message: "Perfect! Say it with confidence"}},
	{min: 80, band: Band{Color: "#66BB6A", Message: "Good to say"}},
	{min: 60, band: Band{Color: "#FFA726", Message: "Consider carefully"}},
	{min: 40, band: Band{Color: "#FF7043", Message: "Think twice"}},
	{min: 20, band: Band{Color: "#EF5350", Message: "Probably best not to say"}},
}

var fallback = Band{Color: "#E53935", Message: KeepToYourself}

// BandFor returns the verdict for percentage.
func BandFor(percentage int) Band {
	for _, b := range bands {
		if b.exact && percentage == b.min {
			return b.band
		}
		if !b.exact && percentage >= b.min {
			return b.band
		}
	}
	return fallback
}

// Messages returns every band message from best to worst.
func Messages() []string {
	out := make([]string, 0, len(bands)+1)
	for _, b := range bands {
		out = append(out, b.band.Message)
	}
	return append(out, fallback.Message)
}

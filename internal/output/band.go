package output

// Band is a qualitative grade for a compliance percentage
type Band struct {
	Name string
	// Color is the hex color used by the HTML report and dashboard.
	Color string
}

var bands = []struct {
	min  float64
	band Band
}{
	{80, Band{Name: "Excellent", Color: "#44dd88"}},
	{60, Band{Name: "Good", Color: "#88dd44"}},
	{40, Band{Name: "Fair", Color: "#ffdd44"}},
	{20, Band{Name: "Poor", Color: "#ff9944"}},
}

// ScoreBand grades a percentage
func ScoreBand(score float64) Band {
	for _, b := range bands {
		if score >= b.min {
			return b.band
		}
	}
	return Band{Name: "Critical", Color: "#ff4444"}
}

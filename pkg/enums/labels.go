package enums

// ABCLabel ranks an item by cumulative contribution.
type ABCLabel string

const (
	ABCLabelA ABCLabel = "A"
	ABCLabelB ABCLabel = "B"
	ABCLabelC ABCLabel = "C"
)

// ABCLabels lists the labels in matrix order.
var ABCLabels = []ABCLabel{ABCLabelA, ABCLabelB, ABCLabelC}

// IsValid reports whether the value is a known ABCLabel.
func (l ABCLabel) IsValid() bool {
	return l == ABCLabelA || l == ABCLabelB || l == ABCLabelC
}

// XYZLabel ranks an item by demand variability.
type XYZLabel string

const (
	XYZLabelX XYZLabel = "X"
	XYZLabelY XYZLabel = "Y"
	XYZLabelZ XYZLabel = "Z"
)

// XYZLabels lists the labels in matrix order.
var XYZLabels = []XYZLabel{XYZLabelX, XYZLabelY, XYZLabelZ}

// IsValid reports whether the value is a known XYZLabel.
func (l XYZLabel) IsValid() bool {
	return l == XYZLabelX || l == XYZLabelY || l == XYZLabelZ
}

// CombinedLabel joins both labels ("AX") or returns "" when either is missing.
func CombinedLabel(abc ABCLabel, xyz XYZLabel) string {
	if abc == "" || xyz == "" {
		return ""
	}
	return string(abc) + string(xyz)
}

package mag

// Sample represents a single magnetometer reading suitable for JSON and MQTT.
// Mx/My/Mz are scaled device counts; Norm is the field magnitude in counts.
type Sample struct {
	Source string `json:"source"` // bus name, e.g. "i2c1"

	Mx int16 `json:"mx"`
	My int16 `json:"my"`
	Mz int16 `json:"mz"`

	Norm float64 `json:"norm"`
	Time string  `json:"time"` // RFC3339
}

type Source interface {
	Next() (Sample, error)
}

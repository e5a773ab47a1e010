package domain

// Device is a cloud device as last reported by the vendor API.
// Status maps a data point code to its raw value.
type Device struct {
	ID       string
	Name     string
	Category string
	Online   bool
	Status   map[string]any
}

// StatusItem is a single data point report.
type StatusItem struct {
	Code  string `json:"code"`
	Value any    `json:"value"`
}

// Clone returns a copy whose Status map can be read without holding
// the owner's lock.
func (d Device) Clone() Device {
	status := make(map[string]any, len(d.Status))
	for k, v := range d.Status {
		status[k] = v
	}
	d.Status = status
	return d
}

// StatusValue returns the raw value reported for code.
func (d Device) StatusValue(code string) (any, bool) {
	v, ok := d.Status[code]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// ApplyStatus merges items into the device status.
func (d *Device) ApplyStatus(items []StatusItem) {
	if d.Status == nil {
		d.Status = make(map[string]any, len(items))
	}
	for _, item := range items {
		d.Status[item.Code] = item.Value
	}
}

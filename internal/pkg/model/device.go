package model

// Device describes one printer found on the network. Discovery creates it and
// it never changes afterwards.
type Device struct {
	ID             string `json:"device_id"`
	Name           string `json:"device_name"`
	Address        string `json:"ip_address"`
	AccessCode     string `json:"-"`
	FilenamePrefix string `json:"filename_prefix"`
}

func (d Device) String() string {
	if d.Name == "" {
		return d.ID
	}
	return d.Name + " (" + d.ID + ")"
}

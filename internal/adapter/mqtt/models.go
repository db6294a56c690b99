package mqtt

// DeviceModel provides information about the device the entity is part of.
//
// UniqueID must be set in the entity for this information to work.
type DeviceModel struct {
	// A list of IDs that uniquely identify the device
	Identifiers []string `json:"identifiers,omitempty"`

	// The manufacturer of the device
	Manufacturer string `json:"manufacturer,omitempty"`

	// The model of the device
	Model string `json:"model,omitempty"`

	// The name of the device
	Name string `json:"name,omitempty"`
}

type AvailabilityModel struct {
	PayloadAvailable    string `json:"payload_available"`
	PayloadNotAvailable string `json:"payload_not_available"`

	// An MQTT topic subscribed to receive availability (online/offline) updates.
	Topic string `json:"topic"`
}

type EntityModel struct {
	// Availability controls the enable/disable state of the entity
	Availability []AvailabilityModel `json:"availability,omitempty"`

	// Device indicates which device this entity is part of
	Device *DeviceModel `json:"device,omitempty"`

	// DeviceClass is one of the well-known HASS device classes, such as
	// 'monetary', 'date', 'safety', etc.
	DeviceClass string `json:"device_class,omitempty"`

	// Icon is one of the MDI icons, eg. "mdi:gas-station"
	Icon string `json:"icon,omitempty"`

	// JSONAttributesTopic is the topic subscribed to receive a JSON dictionary payload
	// of the entity attributes.
	JSONAttributesTopic string `json:"json_attributes_topic,omitempty"`

	// Name specifies the HASS default display name
	Name string `json:"name,omitempty"`

	// StateTopic is the MQTT topic subscribed to receive values
	StateTopic string `json:"state_topic,omitempty"`

	// UniqueID is an ID uniquely identifying this entity
	UniqueID string `json:"unique_id,omitempty"`
}

type SensorModel struct {
	EntityModel

	// StateClass is one of 'measurement', 'total' or 'total_increasing'
	StateClass string `json:"state_class,omitempty"`

	// UnitOfMeasurement defines the measurement units of the sensor (if any)
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
}

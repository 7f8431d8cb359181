package core

// OpenAI object type constants
const (
	ModelObjectType     = "model"
	ModelListObjectType = "list"
)

// ModelOwner is the owned_by value reported for models that carry none.
const ModelOwner = "poe"

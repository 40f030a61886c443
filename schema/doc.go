// Package schema derives JSON Schemas from Go types and validates JSON
// documents against them.
//
// Field names follow the json tag. Constraints come from the jsonschema tag:
//
//	type Order struct {
//	    Drink string `json:"drink" jsonschema:"required"`
//	    Size  string `json:"size" jsonschema:"enum=small|medium|large"`
//	    Shots int    `json:"shots" jsonschema:"minimum=1,maximum=4"`
//	}
//
//	s, err := schema.For[Order]()
//	err = s.Validate(body)
//
// Validate reports every violation it finds as Violations, so a caller can
// return all of them to the client at once.
package schema

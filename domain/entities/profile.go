package entities

import (
	"fmt"
	"time"
)

// FamilyMember is a household member whose emergency contact is notified by SMS
type FamilyMember struct {
	Name             string `json:"name" bson:"name"`
	Relationship     string `json:"relationship,omitempty" bson:"relationship,omitempty"`
	EmergencyContact string `json:"emergency_contact" bson:"emergency_contact"`
}

// Profile holds the contact data the side-effect gateways read
type Profile struct {
	UserID                string         `json:"user_id" bson:"user_id"`
	FullName              string         `json:"full_name" bson:"full_name"`
	EmergencyContactName  string         `json:"emergency_contact_name,omitempty" bson:"emergency_contact_name,omitempty"`
	EmergencyContactPhone string         `json:"emergency_contact_phone,omitempty" bson:"emergency_contact_phone,omitempty"`
	FamilyMembers         []FamilyMember `json:"family_members" bson:"family_members"`
	UpdatedAt             time.Time      `json:"updated_at" bson:"updated_at"`
}

// ContactLabel is how the primary emergency contact is referred to in the transcript
func (p *Profile) ContactLabel() string {
	if p.EmergencyContactName != "" {
		return p.EmergencyContactName
	}
	return p.EmergencyContactPhone
}

func (p *Profile) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidProfile)
	}
	if p.FullName == "" {
		return fmt.Errorf("%w: full_name is required", ErrInvalidProfile)
	}
	return nil
}

package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey;size:512"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Sites []SubscriptionSite `gorm:"foreignKey:Endpoint;references:Endpoint;constraint:OnDelete:CASCADE"`
}

// SubscriptionSite links a push subscription to a logical site whose
// schedule updates the subscriber wants to hear about.
type SubscriptionSite struct {
	Endpoint string `gorm:"primaryKey;size:512"`
	Site     string `gorm:"primaryKey;size:16;index"`
}

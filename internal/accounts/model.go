package accounts

import "time"

// Account is a registered login. The username is the case-sensitive public
// identity; the password is stored only as a bcrypt hash. Accounts carry no
// link to the stories table — authorship is associated through the keyed
// hash of the username instead.
type Account struct {
	AccountID    string    `gorm:"column:account_id;primaryKey;size:190;not null"`
	Username     string    `gorm:"column:username;size:190;not null;uniqueIndex:idx_accounts_username"`
	PasswordHash string    `gorm:"column:password_hash;size:100;not null"`
	Role         string    `gorm:"column:role;size:32;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Account) TableName() string {
	return "accounts"
}

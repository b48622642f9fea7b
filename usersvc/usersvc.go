package usersvc

import (
	"errors"
	"time"
)

type User struct {
	ID        uint64    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name"`
	Email     string    `json:"email" gorm:"uniqueIndex"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

type UserRepository interface {
	Create(name, email, passwordHash string) (User, error)
	FindByEmail(email string) (User, error)
	Find(id uint64) (User, error)
	IsExists(id uint64) (bool, error)
}

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already in use")
)

package gorm

import (
	"errors"

	"github.com/taskdeck/taskdeck/usersvc"
	stdgorm "gorm.io/gorm"
)

type userRepository struct {
	db *stdgorm.DB
}

func NewUserRepository(db *stdgorm.DB) usersvc.UserRepository {
	return &userRepository{db}
}

func (u *userRepository) Create(name, email, passwordHash string) (usersvc.User, error) {
	if _, err := u.FindByEmail(email); err == nil {
		return usersvc.User{}, usersvc.ErrEmailTaken
	}

	user := usersvc.User{Name: name, Email: email, Password: passwordHash}
	result := u.db.Create(&user)

	return user, result.Error
}

func (u *userRepository) FindByEmail(email string) (usersvc.User, error) {
	var user usersvc.User
	result := u.db.Where("email = ?", email).First(&user)

	if errors.Is(result.Error, stdgorm.ErrRecordNotFound) {
		return usersvc.User{}, usersvc.ErrUserNotFound
	}

	return user, result.Error
}

func (u *userRepository) Find(id uint64) (usersvc.User, error) {
	var user usersvc.User
	result := u.db.First(&user, id)

	if errors.Is(result.Error, stdgorm.ErrRecordNotFound) {
		return usersvc.User{}, usersvc.ErrUserNotFound
	}

	return user, result.Error
}

func (u *userRepository) IsExists(id uint64) (bool, error) {
	if _, err := u.Find(id); err != nil {
		return false, err
	}

	return true, nil
}

// Package session управляет списком зарегистрированных пользователей и
// единственной активной сессией.
//
// Канонические ключи хранилища — users (JSON-массив пользователей) и
// currentUser (JSON активного пользователя). Пароли хранятся в виде
// sha256(email:password); открытым текстом пароль нигде не сохраняется.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mzalewska/marketplace-system/internal/model"
	"github.com/mzalewska/marketplace-system/internal/storage"
	"github.com/mzalewska/marketplace-system/internal/validation"
)

// ErrEmailTaken возвращается при регистрации с уже занятым адресом.
var (
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials возвращается при несовпадении email и пароля.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound возвращается, если пользователь с таким email не зарегистрирован.
	ErrUserNotFound = errors.New("user not found")
	// ErrNoSession возвращается, если активная сессия отсутствует.
	ErrNoSession = errors.New("no active session")
	// ErrInvalidProfile возвращается при регистрации с пустыми или некорректными полями.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrPasswordMismatch возвращается, если новый пароль и подтверждение различаются.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrPasswordTooShort возвращается для пароля короче шести символов.
	ErrPasswordTooShort = errors.New("password too short")
)

const minPasswordLength = 6

// Store описывает контракт key-value хранилища, используемый сессиями.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
}

// Controller реализует операции регистрации, входа и управления профилем.
type Controller struct {
	store Store
}

// NewController создаёт контроллер сессий поверх указанного хранилища.
func NewController(store Store) *Controller {
	return &Controller{store: store}
}

// RegisterRequest содержит поля формы регистрации.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
}

// ProfilePatch описывает изменяемые поля профиля.
// Email и пароль через профиль не меняются.
type ProfilePatch struct {
	Name    *string `json:"name,omitempty"`
	Surname *string `json:"surname,omitempty"`
}

func hashPassword(email, password string) []byte {
	sum := sha256.Sum256([]byte(email + ":" + password))
	return sum[:]
}

func decodeUsers(raw []byte) ([]model.User, error) {
	if len(raw) == 0 {
		return []model.User{}, nil
	}
	var users []model.User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("decode user list: %w", err)
	}
	return users, nil
}

// Register добавляет нового пользователя в список.
// Email сравнивается точно, с учётом регистра. Вход не выполняется.
func (c *Controller) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	if strings.TrimSpace(req.Email) == "" ||
		req.Password == "" ||
		strings.TrimSpace(req.Name) == "" ||
		strings.TrimSpace(req.Surname) == "" {
		return nil, ErrInvalidProfile
	}
	if !validation.IsValidEmail(req.Email) {
		return nil, ErrInvalidProfile
	}

	user := model.User{
		Email:        req.Email,
		PasswordHash: hashPassword(req.Email, req.Password),
		Name:         req.Name,
		Surname:      req.Surname,
		DateCreated:  time.Now().UTC(),
	}

	err := c.store.Update(ctx, storage.KeyUsers, func(current []byte) ([]byte, error) {
		users, err := decodeUsers(current)
		if err != nil {
			return nil, err
		}

		for _, u := range users {
			if u.Email == req.Email {
				return nil, fmt.Errorf("%w: %s", ErrEmailTaken, req.Email)
			}
		}

		users = append(users, user)
		return json.Marshal(users)
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("register user: %w", err)
	}

	return &user, nil
}

// Login проверяет пароль и делает пользователя активной сессией.
func (c *Controller) Login(ctx context.Context, email, password string) (*model.User, error) {
	raw, err := c.store.Get(ctx, storage.KeyUsers)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user list: %w", err)
	}

	users, err := decodeUsers(raw)
	if err != nil {
		return nil, err
	}

	hashed := hashPassword(email, password)
	for _, u := range users {
		if u.Email == email && hex.EncodeToString(u.PasswordHash) == hex.EncodeToString(hashed) {
			if err := c.setCurrent(ctx, u); err != nil {
				return nil, err
			}
			user := u
			return &user, nil
		}
	}

	return nil, ErrInvalidCredentials
}

func (c *Controller) setCurrent(ctx context.Context, user model.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := c.store.Put(ctx, storage.KeyCurrentUser, raw); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Current возвращает активную сессию. Отсутствие сессии — ErrNoSession.
func (c *Controller) Current(ctx context.Context) (*model.User, error) {
	raw, err := c.store.Get(ctx, storage.KeyCurrentUser)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNoSession
	}

	var user model.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	return &user, nil
}

// Logout снимает активную сессию. Корзина и объявления не затрагиваются.
func (c *Controller) Logout(ctx context.Context) error {
	if err := c.store.Delete(ctx, storage.KeyCurrentUser); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// RecoverPassword сбрасывает пароль на сгенерированный временный и
// возвращает его. Сохранённый пароль раскрыть невозможно: хранится только
// его хеш.
func (c *Controller) RecoverPassword(ctx context.Context, email string) (string, error) {
	temp, err := generatePassword()
	if err != nil {
		return "", err
	}

	found := false
	err = c.store.Update(ctx, storage.KeyUsers, func(current []byte) ([]byte, error) {
		users, err := decodeUsers(current)
		if err != nil {
			return nil, err
		}

		for i := range users {
			if users[i].Email == email {
				users[i].PasswordHash = hashPassword(email, temp)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
		}

		return json.Marshal(users)
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", err
		}
		return "", fmt.Errorf("recover password: %w", err)
	}

	return temp, nil
}

func generatePassword() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// UpdateProfile меняет имя и фамилию активного пользователя — и в списке
// пользователей, и в записи сессии.
func (c *Controller) UpdateProfile(ctx context.Context, patch ProfilePatch) (*model.User, error) {
	current, err := c.Current(ctx)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		current.Name = *patch.Name
	}
	if patch.Surname != nil {
		current.Surname = *patch.Surname
	}

	if err := c.replaceUser(ctx, *current); err != nil {
		return nil, err
	}
	if err := c.setCurrent(ctx, *current); err != nil {
		return nil, err
	}

	return current, nil
}

// ChangePassword устанавливает новый пароль активного пользователя.
func (c *Controller) ChangePassword(ctx context.Context, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}

	current, err := c.Current(ctx)
	if err != nil {
		return err
	}

	current.PasswordHash = hashPassword(current.Email, newPassword)

	if err := c.replaceUser(ctx, *current); err != nil {
		return err
	}
	return c.setCurrent(ctx, *current)
}

func (c *Controller) replaceUser(ctx context.Context, user model.User) error {
	err := c.store.Update(ctx, storage.KeyUsers, func(current []byte) ([]byte, error) {
		users, err := decodeUsers(current)
		if err != nil {
			return nil, err
		}

		for i := range users {
			if users[i].Email == user.Email {
				users[i] = user
				return json.Marshal(users)
			}
		}

		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, user.Email)
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("update user list: %w", err)
	}
	return nil
}

package models

import "errors"

// Таксономия ошибок платформы. Сервисы возвращают только эти ошибки
// (обёрнутые через %w), хендлеры переводят их в HTTP-статусы.
var (
	ErrAuthenticationFailed     = errors.New("неверный логин или пароль")
	ErrNotAuthenticated         = errors.New("требуется авторизация")
	ErrForbidden                = errors.New("доступ запрещён")
	ErrPreconditionFailed       = errors.New("недопустимый переход статуса")
	ErrValidation               = errors.New("ошибка валидации")
	ErrDuplicateAccount         = errors.New("аккаунт уже зарегистрирован")
	ErrInvalidCredentialsFormat = errors.New("неверный формат учётных данных")
	ErrUpdateRejected           = errors.New("обновление отклонено")
	ErrNotFound                 = errors.New("не найдено")
	ErrRemoteUnavailable        = errors.New("внешний сервис недоступен")
)

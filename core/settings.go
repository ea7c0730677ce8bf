package core

// Settings holds the static bot configuration.
type Settings struct {
	Pairs    []string
	Telegram TelegramSettings
}

// TelegramSettings enables the telegram notifier.
type TelegramSettings struct {
	Enabled bool
	Token   string
	Users   []int
}

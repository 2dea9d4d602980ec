package bot

import (
	"fmt"

	"github.com/ytget/yt-downloader-bot/internal/model"
	"github.com/ytget/yt-downloader-bot/internal/progress"
)

// Supported languages
const (
	LanguagePortuguese = "pt"
	LanguageEnglish    = "en"
	DefaultLanguage    = LanguagePortuguese
)

// Text keys for localization
const (
	KeyHelp               = "help"
	KeyUnauthorized       = "unauthorized"
	KeyConfirmPrompt      = "confirm_prompt"
	KeyConfirmButton      = "confirm_button"
	KeyCancelButton       = "cancel_button"
	KeyConfirmed          = "confirmed"
	KeyCancelled          = "cancelled"
	KeyCancelExpired      = "cancel_expired"
	KeyInvalidToken       = "invalid_token"
	KeyPermissionDenied   = "permission_denied"
	KeyMalformedButton    = "malformed_button"
	KeyPreparing          = "preparing"
	KeyQueued             = "queued"
	KeyDownloading        = "downloading"
	KeyProcessing         = "processing"
	KeyFetchFailed        = "fetch_failed"
	KeyNothingDelivered   = "nothing_delivered"
	KeyCompleted          = "completed"
	KeyCompletedParts     = "completed_parts"
	KeyNoSpace            = "no_space"
	KeyInternalError      = "internal_error"
	KeyRequestUnavailable = "request_unavailable"
)

// Texts manages bot text translations
type Texts struct {
	currentLanguage string
	texts           map[string]map[string]string
}

// NewTexts creates texts for lang, falling back to the default language
func NewTexts(lang string) *Texts {
	t := &Texts{
		currentLanguage: DefaultLanguage,
		texts:           make(map[string]map[string]string),
	}

	t.initializeTexts()
	t.SetLanguage(lang)
	return t
}

// SetLanguage sets the current language if it is known
func (t *Texts) SetLanguage(lang string) {
	if _, exists := t.texts[lang]; exists {
		t.currentLanguage = lang
	}
}

// Language returns the current language
func (t *Texts) Language() string {
	return t.currentLanguage
}

// GetText returns localized text for the given key
func (t *Texts) GetText(key string) string {
	if texts, exists := t.texts[t.currentLanguage]; exists {
		if text, found := texts[key]; found {
			return text
		}
	}

	if texts, exists := t.texts[DefaultLanguage]; exists {
		if text, found := texts[key]; found {
			return text
		}
	}

	return key
}

// Help is the reply to /start, /help and messages without a link
func (t *Texts) Help() string { return t.GetText(KeyHelp) }

// Unauthorized is the reply to users outside the allow-list
func (t *Texts) Unauthorized() string { return t.GetText(KeyUnauthorized) }

// ConfirmPrompt asks the requester to confirm the download of url
func (t *Texts) ConfirmPrompt(url string) string {
	return fmt.Sprintf(t.GetText(KeyConfirmPrompt), url)
}

// ConfirmButton and CancelButton label the prompt's inline buttons
func (t *Texts) ConfirmButton() string { return t.GetText(KeyConfirmButton) }

func (t *Texts) CancelButton() string { return t.GetText(KeyCancelButton) }

// Confirmed replaces the prompt after a confirmation
func (t *Texts) Confirmed(url string) string {
	return fmt.Sprintf(t.GetText(KeyConfirmed), url)
}

func (t *Texts) Cancelled() string { return t.GetText(KeyCancelled) }

func (t *Texts) CancelExpired() string { return t.GetText(KeyCancelExpired) }

func (t *Texts) InvalidToken() string { return t.GetText(KeyInvalidToken) }

func (t *Texts) PermissionDenied() string { return t.GetText(KeyPermissionDenied) }

func (t *Texts) MalformedButton() string { return t.GetText(KeyMalformedButton) }

func (t *Texts) RequestUnavailable() string { return t.GetText(KeyRequestUnavailable) }

// Preparing is the initial text of the progress message
func (t *Texts) Preparing() string { return t.GetText(KeyPreparing) }

// Queued is shown while a job waits for a free worker slot
func (t *Texts) Queued() string { return t.GetText(KeyQueued) }

// Progress renders a progress sample for the progress message
func (t *Texts) Progress(percent int, phase model.Phase) string {
	key := KeyDownloading
	if phase.IsFinal() {
		key = KeyProcessing
	}
	return t.GetText(key) + "\n" + progress.RenderBar(percent)
}

// FetchFailed reports a failed fetch with a short diagnostic
func (t *Texts) FetchFailed(diagnostic string) string {
	return fmt.Sprintf(t.GetText(KeyFetchFailed), diagnostic)
}

func (t *Texts) NothingDelivered() string { return t.GetText(KeyNothingDelivered) }

// Completed reports how many files or parts were sent
func (t *Texts) Completed(delivered int) string {
	if delivered > 1 {
		return fmt.Sprintf(t.GetText(KeyCompletedParts), delivered)
	}
	return t.GetText(KeyCompleted)
}

func (t *Texts) NoSpace() string { return t.GetText(KeyNoSpace) }

func (t *Texts) InternalError() string { return t.GetText(KeyInternalError) }

// initializeTexts sets up all translations
func (t *Texts) initializeTexts() {
	t.texts[LanguagePortuguese] = map[string]string{
		KeyHelp:               "Olá! Envie um link (ou /download <link>) para baixar um vídeo permitido 🎥",
		KeyUnauthorized:       "⛔ Você não tem permissão para usar este bot.",
		KeyConfirmPrompt:      "Baixar este link?\n%s",
		KeyConfirmButton:      "✅ Baixar",
		KeyCancelButton:       "❌ Cancelar",
		KeyConfirmed:          "📥 Download confirmado:\n%s",
		KeyCancelled:          "🚫 Download cancelado.",
		KeyCancelExpired:      "⌛ Este pedido já foi processado ou expirou.",
		KeyInvalidToken:       "⌛ Pedido inválido ou expirado. Envie o link novamente.",
		KeyPermissionDenied:   "⛔ Só quem enviou o link pode confirmar.",
		KeyMalformedButton:    "⚠️ Botão inválido.",
		KeyRequestUnavailable: "⚠️ Não foi possível preparar o download. Tente novamente.",
		KeyPreparing:          "📥 Preparando download...",
		KeyQueued:             "⏳ Na fila, aguardando um download terminar...",
		KeyDownloading:        "⬇️ Baixando...",
		KeyProcessing:         "⚙️ Processando...",
		KeyFetchFailed:        "⚠️ Erro no download: %s",
		KeyNothingDelivered:   "⚠️ Falha: nenhum arquivo foi enviado.",
		KeyCompleted:          "✅ Vídeo enviado com sucesso!",
		KeyCompletedParts:     "✅ Todas as %d partes enviadas com sucesso!",
		KeyNoSpace:            "⚠️ Sem espaço em disco no servidor. Tente mais tarde.",
		KeyInternalError:      "❌ Ocorreu um erro interno ao processar o vídeo.",
	}

	t.texts[LanguageEnglish] = map[string]string{
		KeyHelp:               "Hi! Send a link (or /download <link>) to download an allowed video 🎥",
		KeyUnauthorized:       "⛔ You are not allowed to use this bot.",
		KeyConfirmPrompt:      "Download this link?\n%s",
		KeyConfirmButton:      "✅ Download",
		KeyCancelButton:       "❌ Cancel",
		KeyConfirmed:          "📥 Download confirmed:\n%s",
		KeyCancelled:          "🚫 Download cancelled.",
		KeyCancelExpired:      "⌛ This request was already handled or has expired.",
		KeyInvalidToken:       "⌛ Invalid or expired request. Send the link again.",
		KeyPermissionDenied:   "⛔ Only the user who sent the link can confirm.",
		KeyMalformedButton:    "⚠️ Invalid button.",
		KeyRequestUnavailable: "⚠️ Could not prepare the download. Please try again.",
		KeyPreparing:          "📥 Preparing download...",
		KeyQueued:             "⏳ Queued, waiting for another download to finish...",
		KeyDownloading:        "⬇️ Downloading...",
		KeyProcessing:         "⚙️ Processing...",
		KeyFetchFailed:        "⚠️ Download error: %s",
		KeyNothingDelivered:   "⚠️ Failed: nothing was delivered.",
		KeyCompleted:          "✅ Video sent successfully!",
		KeyCompletedParts:     "✅ All %d parts sent successfully!",
		KeyNoSpace:            "⚠️ The server is out of disk space. Try again later.",
		KeyInternalError:      "❌ An internal error occurred while processing the video.",
	}
}

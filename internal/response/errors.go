package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Attempt token ─────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"
	ErrTestMismatch  ErrCode = "TEST_MISMATCH"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrAttemptNotStarted  ErrCode = "ATTEMPT_NOT_STARTED"
	ErrAttemptActive      ErrCode = "ATTEMPT_ALREADY_ACTIVE"
	ErrAttemptCompleted   ErrCode = "ATTEMPT_COMPLETED"
	ErrSubmitInProgress   ErrCode = "SUBMIT_IN_PROGRESS"
	ErrUnanswered         ErrCode = "UNANSWERED_QUESTIONS"
	ErrNoFailedSubmission ErrCode = "NO_FAILED_SUBMISSION"
	ErrUnknownQuestion    ErrCode = "UNKNOWN_QUESTION"

	// ─── Submission ────────────────────────────────────────────────────
	ErrSubmitFailed        ErrCode = "SUBMIT_FAILED"
	ErrDuplicateSubmission ErrCode = "DUPLICATE_SUBMISSION"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Attempt token ─────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token ujian diperlukan."
	case ErrTokenInvalid:
		return "Token ujian tidak valid."
	case ErrTokenExpired:
		return "Token ujian telah kedaluwarsa."
	case ErrTestMismatch:
		return "Token tidak cocok dengan ujian yang sedang berlangsung."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	case ErrAttemptNotStarted:
		return "Sesi ujian belum dimulai."
	case ErrAttemptActive:
		return "Sesi ujian lain sedang berlangsung."
	case ErrAttemptCompleted:
		return "Sesi ujian sudah dikumpulkan."
	case ErrSubmitInProgress:
		return "Pengumpulan jawaban sedang diproses."
	case ErrUnanswered:
		return "Masih ada pertanyaan yang belum dijawab."
	case ErrNoFailedSubmission:
		return "Tidak ada pengumpulan gagal untuk diulang."
	case ErrUnknownQuestion:
		return "Pertanyaan tidak ditemukan."

	// ─── Submission ────────────────────────────────────────────────────
	case ErrSubmitFailed:
		return "Pengumpulan jawaban gagal. Jawaban Anda aman, silakan coba lagi."
	case ErrDuplicateSubmission:
		return "Ujian ini sudah pernah dikumpulkan."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}

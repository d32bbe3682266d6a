package apperrors

var (
	// Pairing
	ErrNoCurrentRequest = NotFound("you do not have an active pairing request")
	ErrRequestExists    = AlreadyExists("you already have an active pairing request")
	ErrNotIdle          = FailedPrecondition("pairing request is not idle")
	ErrNotCancellable   = FailedPrecondition("invalid status for cancelling pairing request")
	ErrStaleMatch       = New(CodeStaleReference, "pairing match changed state concurrently")
	ErrStanceRequired   = FailedPrecondition("you must take a stance on the debate before pairing")
	ErrDebateNotFound   = NotFound("debate not found")

	// Invites
	ErrInviteNotFound        = NotFound("invite not found")
	ErrOwnInvite             = FailedPrecondition("cannot accept your own invite")
	ErrInviteAlreadyAccepted = FailedPrecondition("invite already accepted")

	// Discussions
	ErrNotParticipant    = NotFound("you are not a participant in this discussion")
	ErrEmptyMessage      = InvalidArg("message must not be empty")
	ErrMessageTooLong    = InvalidArg("message must be at most 5000 characters")
	ErrInvalidEventType  = InvalidArg("invalid event_type")
	ErrMalformedEnvelope = InvalidArg("missing or malformed event payload")
)

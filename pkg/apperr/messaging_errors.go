package apperr

var (
	// Conversation lifecycle
	ErrSelfConversation       = Validation("cannot start a conversation with yourself")
	ErrMissingParticipant     = Validation("both participant ids are required")
	ErrConversationNotFound   = NotFound("conversation not found")
	ErrConversationDeleteNoop = OperationFailed("conversation is already deleted")
	ErrUnknownConversation    = Validation("conversation not found")
	ErrNotParticipant         = Unauthorized("you are not a participant of this conversation")

	// Message lifecycle
	ErrMessageNotFound      = NotFound("message not found")
	ErrNotMessageOwner      = Unauthorized("only the message sender can perform this action")
	ErrMessageDeleteNoop    = OperationFailed("message is already deleted")
	ErrReplyTargetForbidden = Unauthorized("reply target is not accessible")
)

// ErrStore is the caller-safe failure for an unexpected store or collaborator error.
func ErrStore(op string, cause error) error {
	return Wrap(CodeInfrastructure, op+" failed", cause)
}

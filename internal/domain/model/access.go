package model

// CommandKind groups worker commands by who may run them.
type CommandKind string

const (
	CommandPix     CommandKind = "pix"
	CommandGateway CommandKind = "gateway"
	CommandLivre   CommandKind = "livre"
)

// Permit is the worker access rule: the owner runs everything, anyone else
// only generates PIX and only on a public bot.
func Permit(isOwner, isPublic bool, kind CommandKind) bool {
	if isOwner {
		return true
	}
	return kind == CommandPix && isPublic
}

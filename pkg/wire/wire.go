// Package wire describes the JSON surface of the Saving Circle services.
//
// Every request and response is a google.protobuf.Struct, so the payloads on the
// wire are plain JSON objects with snake_case keys (the Connect JSON codec encodes a
// Struct as the bare object). Readers use the lenient accessors in this package:
// a missing or mistyped field yields a zero value instead of an error.
package wire

// Service names.
const (
	LedgerServiceName = "savingcircle.v1.LedgerService"
	AuthServiceName   = "savingcircle.v1.AuthService"
)

// Ledger procedures.
const (
	ListMyGroupsProcedure           = "/" + LedgerServiceName + "/ListMyGroups"
	ListDiscoverableGroupsProcedure = "/" + LedgerServiceName + "/ListDiscoverableGroups"
	GetGroupProcedure               = "/" + LedgerServiceName + "/GetGroup"
	CreateGroupProcedure            = "/" + LedgerServiceName + "/CreateGroup"
	JoinGroupProcedure              = "/" + LedgerServiceName + "/JoinGroup"
	ContributeProcedure             = "/" + LedgerServiceName + "/Contribute"
	RequestWithdrawalProcedure      = "/" + LedgerServiceName + "/RequestWithdrawal"
	DecideWithdrawalProcedure       = "/" + LedgerServiceName + "/DecideWithdrawal"
)

// Auth procedures.
const (
	RegisterProcedure   = "/" + AuthServiceName + "/Register"
	LoginProcedure      = "/" + AuthServiceName + "/Login"
	GetProfileProcedure = "/" + AuthServiceName + "/GetProfile"

	UpdateProfileProcedure = "/" + AuthServiceName + "/UpdateProfile"
)

// Field names used on the wire.
const (
	FieldID            = "id"
	FieldGroupID       = "group_id"
	FieldWithdrawalID  = "withdrawal_id"
	FieldName          = "name"
	FieldDescription   = "description"
	FieldTargetAmount  = "target_amount"
	FieldCurrentAmount = "current_amount"
	FieldCreatedAt     = "created_at"
	FieldCreatedBy     = "created_by"
	FieldMembers       = "members"
	FieldMembersCount  = "members_count"
	FieldContributions = "contributions"
	FieldWithdrawals   = "withdrawals"
	FieldIsAdmin       = "is_admin"
	FieldJoinedAt      = "joined_at"
	FieldEmail         = "email"
	FieldAvatar        = "avatar"
	FieldPassword      = "password"
	FieldAmount        = "amount"
	FieldReason        = "reason"
	FieldStatus        = "status"
	FieldUser          = "user"
	FieldProcessedAt   = "processed_at"
	FieldProcessedBy   = "processed_by"
	FieldToken         = "token"
	FieldGroup         = "group"
	FieldGroups        = "groups"
	FieldContribution  = "contribution"
	FieldWithdrawal    = "withdrawal"
	FieldMessage       = "message"
)

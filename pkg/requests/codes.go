// Package requests implements the typed LookinServer operations built over
// a transport connection and the archive codec.
package requests

import "time"

// Request codes, one per named LookinServer operation.
const (
	CodePing                    = 200
	CodeApp                     = 201
	CodeHierarchy               = 202
	CodeInbuiltAttrModification = 204
	CodeInvokeMethod            = 206
	CodeAllAttrGroups           = 210
	CodeAllSelectorNames        = 213
)

// Default per-operation timeouts, measured from send, with no retries.
const (
	TimeoutPing           = 5 * time.Second
	TimeoutAppInfo        = 10 * time.Second
	TimeoutHierarchy      = 15 * time.Second
	TimeoutAllAttrGroups  = 15 * time.Second
	TimeoutModify         = 10 * time.Second
	TimeoutInvoke         = 10 * time.Second
	TimeoutListSelectors  = 10 * time.Second
)

// Attribute type codes, the stable enumeration shared with the server.
const (
	TypeBool         = 14
	TypeInt          = 3
	TypeLong         = 5
	TypeFloat        = 12
	TypeDouble       = 13
	TypeCGPoint      = 17
	TypeCGSize       = 19
	TypeCGRect       = 20
	TypeUIEdgeInsets = 22
	TypeNSString     = 23
	TypeEnumInt      = 24
	TypeEnumLong     = 25
	TypeUIColor      = 27
)

// voidReturnSentinel is the description string InvokeMethod responses use
// in place of an actual return value description when the invoked selector
// returns void.
const voidReturnSentinel = "LOOKIN_TAG_RETURN_VALUE_VOID"

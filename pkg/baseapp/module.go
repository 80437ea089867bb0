// Copyright 2025 Certen Protocol
//
// Module handler contract and registry: a closed set of concrete
// modules declared at application bring-up, each a fixed compile-time
// handler rather than a heterogeneous runtime-polymorphic registry.

package baseapp

// Msg is one transaction message. Concrete message types are declared by
// each module (e.g. x/bank's MsgSend); the core only routes by Route().
type Msg interface {
	Route() string
	Type() string
	ValidateBasic() error
	GetSigners() []Address
}

// Permission names one capability a module account may hold.
type Permission string

const (
	PermMinter  Permission = "minter"
	PermBurner  Permission = "burner"
	PermStaking Permission = "staking"
)

// Module is the handler contract every subsystem implements. The
// core never inspects a Module's internals; it only calls this interface,
// so ModuleRegistry can hold a mix of auth/bank/staking/etc. behind one
// concrete, non-generic type.
type Module interface {
	// StoreKey names the bank this module owns in the MultiStore.
	StoreKey() string
	// Permissions declares the module account capabilities this module
	// requires, used during InitChain/check_create_new_module_account.
	Permissions() []Permission
	// InitGenesis decodes genesisBytes (module-defined JSON) and seeds
	// this module's store, returning any validator-set updates.
	InitGenesis(ctx *Context, genesisBytes []byte) ([]ValidatorUpdate, error)
	// BeginBlock runs this module's per-block begin hook.
	BeginBlock(ctx *Context) error
	// EndBlock runs this module's per-block end hook, returning any
	// validator-set updates.
	EndBlock(ctx *Context) ([]ValidatorUpdate, error)
	// HandleMsg dispatches one message routed to this module.
	HandleMsg(ctx *Context, msg Msg) (*MsgResult, error)
	// Query answers a query whose path tail (the portion after the
	// module name segment) is pathTail, with module-defined data bytes.
	Query(ctx *Context, pathTail string, data []byte) ([]byte, error)
}

// ValidatorUpdate mirrors the engine-facing validator power change a
// module's genesis/end-block hook may produce.
type ValidatorUpdate struct {
	PubKey []byte
	Power  int64
}

// MsgResult is what a successful HandleMsg returns: arbitrary
// module-defined response bytes plus the events it wants surfaced.
type MsgResult struct {
	Data   []byte
	Events []Event
}

// MsgDecoderFunc turns one message's wire body into a concrete Msg.
type MsgDecoderFunc func(body []byte) (Msg, error)

// ModuleRegistry is the closed set of modules an application declares at
// startup, mapping module names to their handler and routing Msg values
// by Route().
type ModuleRegistry struct {
	byName   map[string]Module
	byRoute  map[string]Module
	decoders map[string]MsgDecoderFunc
	order    []string
}

// NewModuleRegistry returns an empty registry.
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{
		byName:   map[string]Module{},
		byRoute:  map[string]Module{},
		decoders: map[string]MsgDecoderFunc{},
	}
}

// RegisterMsgType declares the wire type name for one message kind a
// module accepts, with decoder turning its raw JSON body into a concrete
// Msg. Only the decoder is recorded: route is not stored, and dispatch
// goes by the decoded Msg's Route() against the routes given to Register.
func (r *ModuleRegistry) RegisterMsgType(msgType, route string, decoder MsgDecoderFunc) {
	r.decoders[msgType] = decoder
}

// DecodeMsg turns one wire message into a concrete Msg via its
// registered decoder. Unknown msgType is a TxParseError at the caller.
func (r *ModuleRegistry) DecodeMsg(msgType string, body []byte) (Msg, error) {
	decode, ok := r.decoders[msgType]
	if !ok {
		return nil, NewCoded(CodespaceCore, CodeTxParseError, "unknown message type %q", msgType)
	}
	return decode(body)
}

// Register adds module under name, routing any Msg whose Route() equals
// route to it. A module with no messages (e.g. a stub module) may pass an
// empty route.
func (r *ModuleRegistry) Register(name, route string, module Module) {
	r.byName[name] = module
	if route != "" {
		r.byRoute[route] = module
	}
	r.order = append(r.order, name)
}

// Names returns every registered module name in registration order.
func (r *ModuleRegistry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Module looks up a module by name.
func (r *ModuleRegistry) Module(name string) (Module, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Route looks up the module a message's route dispatches to.
func (r *ModuleRegistry) Route(route string) (Module, bool) {
	m, ok := r.byRoute[route]
	return m, ok
}

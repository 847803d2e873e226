package builtin

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"sort"
	"time"

	"github.com/expr-lang/expr"
	"github.com/google/uuid"
)

const (
	alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	lowercase    = "abcdefghijklmnopqrstuvwxyz"
)

// Func is a builtin callable from an expression.
type Func func(args ...any) (any, error)

type Registry struct {
	funcs     map[string]Func
	clock     func() time.Time
	lookupEnv func(string) (string, bool)
}

type Option func(*Registry)

// WithClock overrides the time source used by the date and time functions.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) {
		r.clock = clock
	}
}

// WithLookupEnv overrides how env() reads variables.
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(r *Registry) {
		r.lookupEnv = lookup
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		funcs:     make(map[string]Func),
		clock:     time.Now,
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["now"] = r.funcNow
	r.funcs["timestamp"] = r.funcTimestamp
	r.funcs["timestampMs"] = r.funcTimestampMs
	r.funcs["date"] = r.funcDate
	r.funcs["env"] = r.funcEnv
	r.funcs["uuid"] = funcUUID
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["randomEmail"] = funcRandomEmail
	r.funcs["base64"] = funcBase64
	r.funcs["base64Decode"] = funcBase64Decode
	r.funcs["md5"] = funcMD5
	r.funcs["sha256"] = funcSHA256
	r.funcs["urlEncode"] = funcURLEncode
	r.funcs["urlDecode"] = funcURLDecode
	r.funcs["toJSON"] = funcToJSON
	r.funcs["fromJSON"] = funcFromJSON
}

func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

func (r *Registry) Lookup(name string) (Func, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered function names sorted alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options returns expr compile options binding every registered function.
// Same-named expr builtins are disabled so the registry always wins.
func (r *Registry) Options() []expr.Option {
	opts := make([]expr.Option, 0, 2*len(r.funcs))
	for _, name := range r.Names() {
		fn := r.funcs[name]
		opts = append(opts,
			expr.DisableBuiltin(name),
			expr.Function(name, func(params ...any) (any, error) { return fn(params...) }),
		)
	}
	return opts
}

func (r *Registry) funcNow(_ ...any) (any, error) {
	return r.clock().UTC().Format(time.RFC3339), nil
}

func (r *Registry) funcTimestamp(_ ...any) (any, error) {
	return r.clock().Unix(), nil
}

func (r *Registry) funcTimestampMs(_ ...any) (any, error) {
	return r.clock().UnixMilli(), nil
}

func (r *Registry) funcDate(args ...any) (any, error) {
	layout := "2006-01-02"
	if len(args) >= 1 {
		layout = toString(args[0])
	}
	return r.clock().UTC().Format(layout), nil
}

func (r *Registry) funcEnv(args ...any) (any, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("env() requires a variable name")
	}
	name := toString(args[0])
	if value, ok := r.lookupEnv(name); ok {
		return value, nil
	}
	if len(args) >= 2 {
		return args[1], nil
	}
	return nil, fmt.Errorf("environment variable %q is not set", name)
}

func funcUUID(_ ...any) (any, error) {
	return uuid.New().String(), nil
}

func funcRandom(args ...any) (any, error) {
	lo, hi := 0, 100
	if len(args) >= 2 {
		var err error
		if lo, err = toInt(args[0]); err != nil {
			return nil, fmt.Errorf("random() min: %w", err)
		}
		if hi, err = toInt(args[1]); err != nil {
			return nil, fmt.Errorf("random() max: %w", err)
		}
	}
	if hi < lo {
		return nil, fmt.Errorf("random() max %d is lower than min %d", hi, lo)
	}
	return rand.Intn(hi-lo+1) + lo, nil
}

func funcRandomString(args ...any) (any, error) {
	length := 16
	if len(args) >= 1 {
		var err error
		if length, err = toInt(args[0]); err != nil {
			return nil, fmt.Errorf("randomString() length: %w", err)
		}
	}
	if length < 0 {
		return nil, fmt.Errorf("randomString() length must not be negative")
	}
	return randomString(length, alphanumeric), nil
}

func funcRandomEmail(_ ...any) (any, error) {
	return fmt.Sprintf("%s@%s.com", randomString(8, lowercase), randomString(6, lowercase)), nil
}

func funcBase64(args ...any) (any, error) {
	if len(args) < 1 {
		return "", nil
	}
	return base64.StdEncoding.EncodeToString([]byte(toString(args[0]))), nil
}

func funcBase64Decode(args ...any) (any, error) {
	if len(args) < 1 {
		return "", nil
	}
	decoded, err := base64.StdEncoding.DecodeString(toString(args[0]))
	if err != nil {
		return nil, fmt.Errorf("base64Decode(): %w", err)
	}
	return string(decoded), nil
}

func funcMD5(args ...any) (any, error) {
	if len(args) < 1 {
		return "", nil
	}
	hash := md5.Sum([]byte(toString(args[0])))
	return hex.EncodeToString(hash[:]), nil
}

func funcSHA256(args ...any) (any, error) {
	if len(args) < 1 {
		return "", nil
	}
	hash := sha256.Sum256([]byte(toString(args[0])))
	return hex.EncodeToString(hash[:]), nil
}

func funcURLEncode(args ...any) (any, error) {
	if len(args) < 1 {
		return "", nil
	}
	return url.QueryEscape(toString(args[0])), nil
}

func funcURLDecode(args ...any) (any, error) {
	if len(args) < 1 {
		return "", nil
	}
	s := toString(args[0])
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s, nil
	}
	return decoded, nil
}

func funcToJSON(args ...any) (any, error) {
	if len(args) < 1 {
		return "null", nil
	}
	data, err := json.Marshal(args[0])
	if err != nil {
		return nil, fmt.Errorf("toJSON(): %w", err)
	}
	return string(data), nil
}

func funcFromJSON(args ...any) (any, error) {
	if len(args) < 1 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(toString(args[0])), &v); err != nil {
		return nil, fmt.Errorf("fromJSON(): %w", err)
	}
	return v, nil
}

func randomString(length int, charset string) string {
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		var i int
		if _, err := fmt.Sscanf(n, "%d", &i); err != nil {
			return 0, fmt.Errorf("%q is not a valid integer", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%v is not a valid integer", v)
	}
}

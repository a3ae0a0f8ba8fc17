package validator

import (
	"encoding/base64"
	"fmt"
)

// SyntaxOKSentinel is written to stdout by the syntax-phase program when the
// candidate code compiles cleanly.
const SyntaxOKSentinel = "__SYNTAX_OK__"

// Output sentinels delimiting the functional phase's JSON result, per spec §4.3.
const (
	OutputStartSentinel = "__RULE_OUTPUT__"
	OutputEndSentinel   = "__RULE_OUTPUT_END__"
)

// buildSyntaxProgram embeds code as a base64 literal and asks the interpreter
// to compile it as source without executing it; a parse error is reported on
// stderr with a non-zero exit.
func buildSyntaxProgram(code string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(code))
	return fmt.Sprintf(`# __SYNTAX_CHECK__
import base64, sys
src = base64.b64decode("%s").decode("utf-8")
try:
    compile(src, "<rule>", "exec")
except SyntaxError as e:
    print(str(e), file=sys.stderr)
    sys.exit(1)
print(%q)
`, encoded, SyntaxOKSentinel)
}

// buildFunctionalProgram embeds code and a JSON fixture payload (also
// base64-encoded) and asks the interpreter to exec the candidate in a fresh
// namespace, locate the first callable defined in it (per the inherited
// "first callable wins" behavior documented in spec §9), invoke it with the
// fixture, and print the JSON result between sentinel markers.
func buildFunctionalProgram(code string, fixtureJSON string) string {
	encodedCode := base64.StdEncoding.EncodeToString([]byte(code))
	encodedFixture := base64.StdEncoding.EncodeToString([]byte(fixtureJSON))
	return fmt.Sprintf(`# __FUNCTIONAL_CHECK__
import base64, json, sys, textwrap

src = base64.b64decode("%s").decode("utf-8")
src = textwrap.dedent(src)
fixture = json.loads(base64.b64decode("%s").decode("utf-8"))

namespace = {}
exec(compile(src, "<rule>", "exec"), namespace)

rule_fn = None
for value in namespace.values():
    if callable(value):
        rule_fn = value
        break

if rule_fn is None:
    print("no callable defined in rule code", file=sys.stderr)
    sys.exit(1)

result = rule_fn(fixture["employee"], fixture["security"], fixture["trade_date"])
print("%s")
print(json.dumps(result))
print("%s")
`, encodedCode, encodedFixture, OutputStartSentinel, OutputEndSentinel)
}

package lower

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/rbc/compiler/ast"
	"github.com/slowlang/rbc/compiler/parse"
)

func compile(t *testing.T, src string) string {
	t.Helper()

	ll, err := tryCompile(src)
	require.NoError(t, err)

	return ll
}

func tryCompile(src string) (string, error) {
	ctx := context.Background()

	x, err := parse.Parse(ctx, []byte(src), ast.NewTree(8))
	if err != nil {
		return "", err
	}

	m, err := Lower(ctx, Config{WordBytes: 8}, x)
	if err != nil {
		return "", err
	}

	return m.String(), nil
}

func TestMangling(t *testing.T) {
	assert.Equal(t, "b.main", Mangle("main"))

	ll := compile(t, `main() { }`)
	assert.Contains(t, ll, `@b.main`)
}

func TestEmptyBodyReturnsZero(t *testing.T) {
	ll := compile(t, `main() ;`)
	assert.Contains(t, ll, "ret i64 0")
}

func TestConstantCall(t *testing.T) {
	ll := compile(t, `main(){ extrn putnumb; putnumb(42); }`)
	assert.Contains(t, ll, "i64 42")
	assert.Contains(t, ll, `@b.putnumb = external global i64`)
	assert.Contains(t, ll, "call i64")
	assert.Contains(t, ll, "inttoptr")
}

func TestCharPackingAndEscapes(t *testing.T) {
	ll := compile(t, `main(){ extrn putnumb, putchar; putnumb('ab'); putchar('*n'); }`)
	assert.Contains(t, ll, "i64 25185") // 'a' + 'b'<<8
	assert.Contains(t, ll, "i64 10")
}

func TestGlobalVector(t *testing.T) {
	ll := compile(t, `v[3] 10, 20, 30, 40; main(){ extrn v, putnumb; putnumb(v[2]); }`)

	assert.Contains(t, ll, "i64 10, i64 20, i64 30, i64 40")
	assert.Contains(t, ll, `@"rbc.cells.v"`)
	assert.Contains(t, ll, `@"b.v"`)
	// the header is patched with the word-index of the cells before main runs
	assert.Contains(t, ll, `@rbc.global_init`)
	assert.Contains(t, ll, "@llvm.global_ctors")
	assert.Contains(t, ll, "sdiv exact")
}

func TestVectorGrowsToInitializers(t *testing.T) {
	ll := compile(t, `v[1] 1, 2, 3; main(){}`)
	assert.Contains(t, ll, "[3 x i64]")
}

func TestVectorMaxIdxZero(t *testing.T) {
	ll := compile(t, `v[0]; main(){}`)
	assert.Contains(t, ll, "[1 x i64]")
}

func TestStringLiterals(t *testing.T) {
	ll := compile(t, `main(){ extrn putstr; putstr("hello!*n"); }`)
	assert.Contains(t, ll, `c"hello!\0A\04"`)
	assert.Contains(t, ll, `@"rbc.str.0"`)

	ll = compile(t, `main(){ extrn putstr; putstr(""); }`)
	assert.Contains(t, ll, `c"\04"`)
}

func TestGlobalStringInitializer(t *testing.T) {
	ll := compile(t, `s1 "hello, "; main(){ extrn s1, putstr; putstr(s1); }`)
	assert.Contains(t, ll, `@"rbc.str.0"`)
	assert.Contains(t, ll, `@rbc.global_init`)
}

func TestNameInitializer(t *testing.T) {
	ll := compile(t, `x y; y 42; main(){}`)
	assert.Contains(t, ll, `@"b.y" = global i64 42`)
	assert.Contains(t, ll, `@rbc.global_init`)

	_, err := tryCompile(`x y; main(){}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined name: y")
}

func TestLazyResolution(t *testing.T) {
	// main may call a function defined further down the file
	ll := compile(t, `main(){ extrn f, putnumb; putnumb(f()); } f() return(42);`)
	assert.Contains(t, ll, `@b.f`)

	// f must not be redeclared as an external
	assert.NotContains(t, ll, `@b.f = external`)
}

func TestRecursion(t *testing.T) {
	ll := compile(t, `fact(n) return(n==0?1:n*fact(n-1)); main(){ extrn putnumb, fact; putnumb(fact(5)); }`)
	assert.Contains(t, ll, `@b.fact`)
	assert.Contains(t, ll, "phi i64")
}

func TestAddressIdentity(t *testing.T) {
	ll := compile(t, `x; main(){ extrn x, putnumb; putnumb(&x == &x); }`)
	assert.Contains(t, ll, "icmp eq")
	assert.Contains(t, ll, "ptrtoint")
}

func TestDerefOfAddress(t *testing.T) {
	compile(t, `main(){ auto x; x = 5; x = *(&x); }`)
}

func TestAutoVector(t *testing.T) {
	ll := compile(t, `main(){ auto v[2], i; i = 0; v[i] = 1; }`)
	assert.Contains(t, ll, "alloca [3 x i64]")
	assert.Contains(t, ll, "alloca i64")
}

func TestWhileAndBreak(t *testing.T) {
	ll := compile(t, `main(){ auto i; i=0; while(i<3){ i=+1; if(i==2) break; } }`)
	assert.Contains(t, ll, "icmp slt")
	assert.Contains(t, ll, "br i1")
}

func TestBreakOutsideLoop(t *testing.T) {
	_, err := tryCompile(`main(){ break; }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "break outside")
}

func TestGoto(t *testing.T) {
	ll := compile(t, `main(){
		auto i;
		i = 0;
	loop:
		i =+ 1;
		if(i == 5) goto exit;
		goto loop;
	exit:
		return(i);
	}`)
	assert.Contains(t, ll, "br label")

	_, err := tryCompile(`main(){ goto nowhere; }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a label")
}

func TestSwitchFallthrough(t *testing.T) {
	ll := compile(t, `describe(val) {
		extrn putstr, putnumb;
		switch(val) {
			case 0: putstr("zero");
			case 1: putstr("one"); break;
			default: putstr("many");
		}
	} main(){ extrn describe; describe(1); }`)

	assert.Contains(t, ll, "icmp eq i64")

	// both comparison constants appear in the dispatch
	assert.Contains(t, ll, "i64 0")
	assert.Contains(t, ll, "i64 1")
}

func TestDuplicateDefinition(t *testing.T) {
	_, err := tryCompile(`x; x; main(){}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate definition")

	_, err = tryCompile(`main(){ auto x, x; }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate definition")
}

func TestNotAnLValue(t *testing.T) {
	_, err := tryCompile(`main(){ auto a, b; a = 1; b = 2; &(a+b); }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an lvalue")

	_, err = tryCompile(`f(){} main(){ extrn f; f = 5; }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot assign")
}

func TestArityMismatch(t *testing.T) {
	_, err := tryCompile(`f(a, b) return(a+b); main(){ extrn f; f(1); }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arguments")
}

func TestBytesPerWordBuiltin(t *testing.T) {
	ll := compile(t, `main(){ extrn putnumb, __bytes_per_word; putnumb(__bytes_per_word); }`)
	assert.Contains(t, ll, "i64 8")
	assert.NotContains(t, ll, "__bytes_per_word")
}

func TestImplicitExternal(t *testing.T) {
	// E6 uses getchar and putchar without extrn
	ll := compile(t, `main(){ auto c; while((c=getchar()) != '*e') putchar(c); }`)
	assert.Contains(t, ll, `@b.getchar = external global i64`)
	assert.Contains(t, ll, `@b.putchar = external global i64`)
	assert.Contains(t, ll, "icmp ne") // the EOT comparison
}

func TestWordSize4(t *testing.T) {
	ctx := context.Background()

	x, err := parse.Parse(ctx, []byte(`main(){ extrn putnumb; putnumb(__bytes_per_word); }`), ast.NewTree(4))
	require.NoError(t, err)

	m, err := Lower(ctx, Config{WordBytes: 4}, x)
	require.NoError(t, err)

	ll := m.String()
	assert.Contains(t, ll, "i32 4")
	assert.NotContains(t, ll, "i64")
}

func TestIncDec(t *testing.T) {
	ll := compile(t, `main(){ auto i; i = 4; i++; i--; ++i; --i; }`)

	adds := strings.Count(ll, "add i64")
	subs := strings.Count(ll, "sub i64")
	assert.GreaterOrEqual(t, adds, 2)
	assert.GreaterOrEqual(t, subs, 2)
}

func TestEagerLogicalOps(t *testing.T) {
	// both sides of & and | are evaluated
	ll := compile(t, `main(){ extrn f, g; if(f() & g()) return(1); } f() return(1); g() return(0);`)

	assert.Equal(t, 2, strings.Count(ll, "call i64"))
	assert.Contains(t, ll, "and i64")
	assert.Contains(t, ll, "icmp ne")
}

func TestOperatorLowering(t *testing.T) {
	ll := compile(t, `main(){ auto a, b; a = 10; b = 3;
		a = a / b; a = a % b; a = a << b; a = a >> b;
		a = a ^ b; a = ~a; a = !a; a = -a;
	}`)

	for _, inst := range []string{"sdiv i64", "srem i64", "shl i64", "ashr i64", "xor i64", "icmp eq", "zext i1", "sub i64 0"} {
		assert.Contains(t, ll, inst, inst)
	}
}

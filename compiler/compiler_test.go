package compiler

import (
	"context"
	"strings"
	"testing"
)

// the seed programs every build of the compiler must accept
var progs = map[string]string{
	"hello":    `main(){ extrn putstr; putstr("hello!*n"); }`,
	"fact":     `fact(n) return(n==0?1:n*fact(n-1)); main(){extrn putnumb, fact; putnumb(fact(5));}`,
	"while":    `main(){ auto i; i=0; while(i<3){ i=+1; } extrn putnumb; putnumb(i); }`,
	"vector":   `v[2] 1,2,3; main(){ extrn v, putnumb; auto s, i; s=0; i=0; while(i<3){ s=+v[i++]; } putnumb(s); }`,
	"wordsize": `main(){ extrn putnumb, __bytes_per_word; putnumb(__bytes_per_word); }`,
	"copy":     `main(){ auto c; while((c=getchar())!='*e') putchar(c); }`,
}

func TestSmoke(t *testing.T) {
	ctx := context.Background()

	for name, src := range progs {
		obj, err := Compile(ctx, Config{}, name, []byte(src))
		if err != nil {
			t.Errorf("compile %v: %v", name, err)
			continue
		}

		if !strings.Contains(string(obj), "define i64 @b.main()") {
			t.Errorf("%v: no main in module:\n%s", name, obj)
		}

		t.Logf("%v:\n%s", name, obj)
	}
}

func TestWordSizes(t *testing.T) {
	ctx := context.Background()

	for _, wb := range []int{4, 8} {
		_, err := Compile(ctx, Config{WordBytes: wb}, "t", []byte(progs["vector"]))
		if err != nil {
			t.Errorf("compile with %d byte words: %v", wb, err)
		}
	}
}

func TestParseErrorSurfaces(t *testing.T) {
	_, err := Compile(context.Background(), Config{}, "t", []byte(`main(){ x = ; }`))
	if err == nil {
		t.Errorf("expected an error")
	}
}

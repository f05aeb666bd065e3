//go:build cgo

package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipestanzani/beyondsight/internal/graph"
)

const accountSource = `package bank;

import java.util.List;

public class Account {
    private long balance;
    private Owner owner;

    public Account(Owner owner) {
        this.owner = owner;
    }

    public void deposit(long amount) {
        balance += amount;
        audit("deposit", amount);
    }

    public long getBalance() {
        return balance;
    }

    public void rename(String balance) {
        System.out.println(balance);
        this.balance = 0;
    }

    private void audit(String kind, long... values) {
        Ledger ledger = new Ledger();
        ledger.record(kind);
    }

    enum Kind { CHECKING, SAVINGS }
}
`

func parseAccount(t *testing.T) javaFile {
	t.Helper()
	f, err := parseJavaSource(context.Background(), "/src/bank/Account.java", []byte(accountSource))
	require.NoError(t, err)
	return f
}

func findJavaMethod(t *testing.T, c javaClass, sig string) javaMethod {
	t.Helper()
	for _, m := range c.methods {
		if m.signature() == sig {
			return m
		}
	}
	require.Failf(t, "method not found", "%s in %s", sig, c.name)
	return javaMethod{}
}

func TestParseJavaSource_Declarations(t *testing.T) {
	f := parseAccount(t)
	require.Len(t, f.classes, 2)

	account := f.classes[0]
	assert.Equal(t, "Account", account.name)
	assert.Equal(t, 5, account.line)
	assert.Equal(t, []javaField{
		{name: "balance", typ: "long", line: 6},
		{name: "owner", typ: "Owner", line: 7},
	}, account.fields)

	var sigs []string
	for _, m := range account.methods {
		sigs = append(sigs, m.signature())
	}
	assert.Equal(t, []string{
		"Account(Owner)", "deposit(long)", "getBalance()", "rename(String)", "audit(String,long...)",
	}, sigs)
	assert.Equal(t, "long", findJavaMethod(t, account, "getBalance()").returnType)

	kind := f.classes[1]
	assert.Equal(t, "Kind", kind.name)
	assert.Len(t, kind.fields, 2)
	assert.Equal(t, "Kind", kind.fields[0].typ)
}

func TestParseJavaSource_Accesses(t *testing.T) {
	account := parseAccount(t).classes[0]

	ctor := findJavaMethod(t, account, "Account(Owner)")
	assert.Equal(t, []javaAccess{{name: "owner", line: 10}}, ctor.writes)
	assert.Empty(t, ctor.reads, "parameter shadows the field")

	deposit := findJavaMethod(t, account, "deposit(long)")
	assert.Equal(t, []javaAccess{{name: "balance", line: 14}}, deposit.writes)
	assert.Equal(t, []javaCall{{name: "audit", args: 2, line: 15}}, deposit.calls)

	get := findJavaMethod(t, account, "getBalance()")
	assert.Equal(t, []javaAccess{{name: "balance", line: 19}}, get.reads)

	rename := findJavaMethod(t, account, "rename(String)")
	assert.Equal(t, []javaAccess{{name: "balance", line: 24}}, rename.writes)
	for _, r := range rename.reads {
		assert.NotEqual(t, "balance", r.name, "shadowed identifier is not a field read")
	}

	audit := findJavaMethod(t, account, "audit(String,long...)")
	assert.Contains(t, audit.calls, javaCall{name: "Ledger", args: 0, line: 28})
	assert.Contains(t, audit.calls, javaCall{name: "record", args: 1, line: 29})
}

func TestJavaProducer_Produce(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "bank"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "bank", "Account.java"), []byte(accountSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "bank", "Teller.java"), []byte(`package bank;

public class Teller {
    private Account account;

    public void serve() {
        account.deposit(10);
    }
}
`), 0o644))

	p := NewJavaProducer(nil)
	require.True(t, p.Detect(root))

	b := graph.NewBuilder()
	require.NoError(t, p.Produce(context.Background(), root, b))
	g := b.Freeze()

	serve, ok := g.FindMethod("serve()")
	require.True(t, ok)
	deposit, ok := g.FindMethod("deposit(long)")
	require.True(t, ok)
	assert.Equal(t, []int64{deposit}, g.Successors(serve, graph.EdgeKindCalls))

	accountField, ok := g.FindField("account")
	require.True(t, ok)
	assert.Equal(t, []int64{serve}, g.Predecessors(accountField, graph.EdgeKindReads))
	n, _ := g.Node(accountField)
	assert.Equal(t, []string{"Account"}, n.FieldTypes)
}

// Command syscheck is a development-time lint: it walks the source tree
// for syscall.Table.Register call sites and reports any number in
// defs.SyscallNames that no package registers a handler for. Individual
// syscall bodies are implemented by other subsystems as they're built;
// this just keeps the dispatch table and the name table from drifting
// apart silently.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/constant"
	"go/types"
	"os"
	"sort"

	"golang.org/x/tools/go/packages"
)

func main() {
	dir := flag.String("dir", "./...", "package pattern to scan for Register call sites")
	flag.Parse()

	missing, err := run(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "syscheck:", err)
		os.Exit(1)
	}
	if len(missing) > 0 {
		fmt.Fprintln(os.Stderr, "syscheck: unregistered syscall numbers:")
		for _, m := range missing {
			fmt.Fprintf(os.Stderr, "  %3d %s\n", m.num, m.name)
		}
		os.Exit(1)
	}
	fmt.Println("syscheck: every named syscall has a registered handler")
}

type missingSyscall struct {
	num  int
	name string
}

func run(pattern string) ([]missingSyscall, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedSyntax | packages.NeedTypes |
			packages.NeedTypesInfo | packages.NeedImports | packages.NeedDeps,
	}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		return nil, fmt.Errorf("package load reported errors")
	}

	names, err := findSyscallNames(pkgs)
	if err != nil {
		return nil, err
	}
	registered := findRegisteredNumbers(pkgs)

	var missing []missingSyscall
	for num, name := range names {
		if !registered[num] {
			missing = append(missing, missingSyscall{num, name})
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].num < missing[j].num })
	return missing, nil
}

// findSyscallNames locates defs.SyscallNames and reads its map literal's
// integer keys and string-literal values straight out of type info,
// rather than re-parsing the defs package's syscall number constants by
// hand.
func findSyscallNames(pkgs []*packages.Package) (map[int]string, error) {
	for _, pkg := range pkgs {
		if pkg.Types.Path() != "rvkernel/internal/defs" {
			continue
		}
		obj := pkg.Types.Scope().Lookup("SyscallNames")
		if obj == nil {
			continue
		}
		for _, file := range pkg.Syntax {
			names, ok := syscallNamesFromSyntax(file, pkg.TypesInfo)
			if ok {
				return names, nil
			}
		}
	}
	return nil, fmt.Errorf("rvkernel/internal/defs.SyscallNames not found")
}

func syscallNamesFromSyntax(file *ast.File, info *types.Info) (map[int]string, bool) {
	var result map[int]string
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok || result != nil {
			return true
		}
		for i, id := range vs.Names {
			if id.Name != "SyscallNames" || i >= len(vs.Values) {
				continue
			}
			lit, ok := vs.Values[i].(*ast.CompositeLit)
			if !ok {
				continue
			}
			result = make(map[int]string)
			for _, elt := range lit.Elts {
				kv, ok := elt.(*ast.KeyValueExpr)
				if !ok {
					continue
				}
				num, ok := constIntValue(kv.Key, info)
				if !ok {
					continue
				}
				name, ok := constStringValue(kv.Value, info)
				if !ok {
					continue
				}
				result[num] = name
			}
		}
		return true
	})
	return result, result != nil
}

func constIntValue(e ast.Expr, info *types.Info) (int, bool) {
	tv, ok := info.Types[e]
	if !ok || tv.Value == nil {
		return 0, false
	}
	i64, ok := constant.Int64Val(tv.Value)
	return int(i64), ok
}

func constStringValue(e ast.Expr, info *types.Info) (string, bool) {
	tv, ok := info.Types[e]
	if !ok || tv.Value == nil {
		return "", false
	}
	return constant.StringVal(tv.Value), true
}

// findRegisteredNumbers scans every loaded package for calls shaped like
// <table>.Register(<number>, ...) where <table> has type
// *rvkernel/internal/syscall.Table. The first argument is read from type
// info's constant value, so a defs.SYS_* named constant resolves exactly
// like an int literal; only a genuinely non-constant expression (a
// variable, a computed number) is left unresolved.
func findRegisteredNumbers(pkgs []*packages.Package) map[int]bool {
	registered := make(map[int]bool)
	for _, pkg := range pkgs {
		for _, file := range pkg.Syntax {
			ast.Inspect(file, func(n ast.Node) bool {
				call, ok := n.(*ast.CallExpr)
				if !ok {
					return true
				}
				sel, ok := call.Fun.(*ast.SelectorExpr)
				if !ok || sel.Sel.Name != "Register" || len(call.Args) == 0 {
					return true
				}
				if !receiverIsSyscallTable(sel.X, pkg.TypesInfo) {
					return true
				}
				if num, ok := constIntValue(call.Args[0], pkg.TypesInfo); ok {
					registered[num] = true
				}
				return true
			})
		}
	}
	return registered
}

func receiverIsSyscallTable(e ast.Expr, info *types.Info) bool {
	t := info.TypeOf(e)
	if t == nil {
		return false
	}
	ptr, ok := t.(*types.Pointer)
	if !ok {
		return false
	}
	named, ok := ptr.Elem().(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj != nil && obj.Pkg() != nil &&
		obj.Pkg().Path() == "rvkernel/internal/syscall" && obj.Name() == "Table"
}

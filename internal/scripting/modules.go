package scripting

import (
	"math"

	lua "github.com/yuin/gopher-lua"

	"github.com/cory-johannsen/d20sheet/internal/game/dice"
)

// RegisterModules installs the "d20" table of Go-backed helpers into L:
//
//	d20.abilityMod(score)              -> floor((score-10)/2), min -5
//	d20.sizeDie(count, sides, offset)  -> scaled die string, e.g. "2d6"
//	d20.diceMax(expr)                  -> largest result of a dice string
//
// Precondition: L must come from NewSandboxedState.
func RegisterModules(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "abilityMod", L.NewFunction(luaAbilityMod))
	L.SetField(mod, "sizeDie", L.NewFunction(luaSizeDie))
	L.SetField(mod, "diceMax", L.NewFunction(luaDiceMax))
	L.SetGlobal("d20", mod)
}

func luaAbilityMod(L *lua.LState) int {
	score := float64(L.CheckNumber(1))
	L.Push(lua.LNumber(math.Max(-5, math.Floor((score-10)/2))))
	return 1
}

func luaSizeDie(L *lua.LState) int {
	count := L.CheckInt(1)
	sides := L.CheckInt(2)
	offset := L.OptInt(3, 0)
	crit := L.OptInt(4, 1)
	die, _ := dice.SizeDie(count, sides, offset, crit)
	L.Push(lua.LString(die))
	return 1
}

func luaDiceMax(L *lua.LState) int {
	n, err := dice.MaxFormula(L.CheckString(1))
	if err != nil {
		L.RaiseError("d20.diceMax: %s", err.Error())
		return 0
	}
	L.Push(lua.LNumber(n))
	return 1
}

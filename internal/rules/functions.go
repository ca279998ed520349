package rules

import (
	"fmt"
	"math"

	"github.com/nerrad567/bosun-core/internal/patch"
)

// FuncAnchorDrift is the name of the built-in anchor drift predicate.
const FuncAnchorDrift = "anchor_drift"

const earthRadiusMetres = 6371000.0

// BuiltinFunctions returns the custom predicates shipped with Bosun.
func BuiltinFunctions() Functions {
	return Functions{
		FuncAnchorDrift: AnchorDrift,
	}
}

// AnchorDrift holds when the anchor is deployed and the boat is further
// from the drop point than the swing radius.
//
// The radius is rode_length * ratio + margin, with args "ratio" (default
// 1.0) and "margin_m" (default 0). "margin_from" names a path, usually
// env.<key>, whose value overrides margin_m when it resolves. It does not
// hold while the anchor is up or either position is unknown.
func AnchorDrift(state *patch.Object, env Env, args map[string]any) (bool, error) {
	deployed, _ := state.Lookup("anchor", "deployed")
	if deployed != true {
		return false, nil
	}

	lat1, ok1 := number(state, "anchor", "drop_location", "latitude")
	lon1, ok2 := number(state, "anchor", "drop_location", "longitude")
	lat2, ok3 := number(state, "anchor", "current_location", "latitude")
	lon2, ok4 := number(state, "anchor", "current_location", "longitude")
	rode, ok5 := number(state, "anchor", "rode_length")
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return false, nil
	}

	ratio, err := floatArg(args, "ratio", 1.0)
	if err != nil {
		return false, err
	}
	margin, err := floatArg(args, "margin_m", 0)
	if err != nil {
		return false, err
	}
	if from, ok := args["margin_from"].(string); ok {
		if v, found := Resolve(state, env, from); found {
			if margin, ok = patch.ToFloat(v); !ok {
				return false, fmt.Errorf("%w: %s is %T, want number", ErrTypeMismatch, from, v)
			}
		}
	}

	return Haversine(lat1, lon1, lat2, lon2) > rode*ratio+margin, nil
}

// Haversine returns the great-circle distance in metres.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMetres * math.Asin(math.Sqrt(a))
}

func number(state *patch.Object, path ...string) (float64, bool) {
	v, ok := state.Lookup(path...)
	if !ok {
		return 0, false
	}
	return patch.ToFloat(v)
}

func floatArg(args map[string]any, key string, def float64) (float64, error) {
	v, ok := args[key]
	if !ok {
		return def, nil
	}
	f, ok := patch.ToFloat(v)
	if !ok {
		return 0, fmt.Errorf("%w: argument %s is %T, want number", ErrTypeMismatch, key, v)
	}
	return f, nil
}

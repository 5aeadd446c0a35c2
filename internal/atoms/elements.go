package atoms

import "sort"

type elementEntry struct {
	symbol string
	name   string
	z      int
	a      float64
}

// Standard atomic weights for the elements that commonly appear in
// epitaxial oxide, metal and semiconductor stacks.
var elementTable = map[string]elementEntry{
	"H":  {"H", "Hydrogen", 1, 1.008},
	"Li": {"Li", "Lithium", 3, 6.94},
	"B":  {"B", "Boron", 5, 10.81},
	"C":  {"C", "Carbon", 6, 12.011},
	"N":  {"N", "Nitrogen", 7, 14.007},
	"O":  {"O", "Oxygen", 8, 15.999},
	"F":  {"F", "Fluorine", 9, 18.998},
	"Mg": {"Mg", "Magnesium", 12, 24.305},
	"Al": {"Al", "Aluminium", 13, 26.982},
	"Si": {"Si", "Silicon", 14, 28.085},
	"P":  {"P", "Phosphorus", 15, 30.974},
	"S":  {"S", "Sulfur", 16, 32.06},
	"Ca": {"Ca", "Calcium", 20, 40.078},
	"Sc": {"Sc", "Scandium", 21, 44.956},
	"Ti": {"Ti", "Titanium", 22, 47.867},
	"V":  {"V", "Vanadium", 23, 50.942},
	"Cr": {"Cr", "Chromium", 24, 51.996},
	"Mn": {"Mn", "Manganese", 25, 54.938},
	"Fe": {"Fe", "Iron", 26, 55.845},
	"Co": {"Co", "Cobalt", 27, 58.933},
	"Ni": {"Ni", "Nickel", 28, 58.693},
	"Cu": {"Cu", "Copper", 29, 63.546},
	"Zn": {"Zn", "Zinc", 30, 65.38},
	"Ga": {"Ga", "Gallium", 31, 69.723},
	"Ge": {"Ge", "Germanium", 32, 72.630},
	"As": {"As", "Arsenic", 33, 74.922},
	"Sr": {"Sr", "Strontium", 38, 87.62},
	"Y":  {"Y", "Yttrium", 39, 88.906},
	"Zr": {"Zr", "Zirconium", 40, 91.224},
	"Nb": {"Nb", "Niobium", 41, 92.906},
	"Mo": {"Mo", "Molybdenum", 42, 95.95},
	"Ru": {"Ru", "Ruthenium", 44, 101.07},
	"Pd": {"Pd", "Palladium", 46, 106.42},
	"Ag": {"Ag", "Silver", 47, 107.87},
	"In": {"In", "Indium", 49, 114.82},
	"Sn": {"Sn", "Tin", 50, 118.71},
	"Ba": {"Ba", "Barium", 56, 137.33},
	"La": {"La", "Lanthanum", 57, 138.91},
	"Nd": {"Nd", "Neodymium", 60, 144.24},
	"Gd": {"Gd", "Gadolinium", 64, 157.25},
	"Dy": {"Dy", "Dysprosium", 66, 162.50},
	"Ho": {"Ho", "Holmium", 67, 164.93},
	"Ta": {"Ta", "Tantalum", 73, 180.95},
	"W":  {"W", "Tungsten", 74, 183.84},
	"Ir": {"Ir", "Iridium", 77, 192.22},
	"Pt": {"Pt", "Platinum", 78, 195.08},
	"Au": {"Au", "Gold", 79, 196.97},
	"Pb": {"Pb", "Lead", 82, 207.2},
	"Bi": {"Bi", "Bismuth", 83, 208.98},
}

// Symbols lists the known element symbols in order of atomic number.
func Symbols() []string {
	out := make([]string, 0, len(elementTable))
	for s := range elementTable {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return elementTable[out[i]].z < elementTable[out[j]].z
	})
	return out
}

package keycode

// keyNames is a subset of linux/input-event-codes.h covering the keys
// a compositor config realistically binds (letters, digits, function
// keys, VT-switch targets, and a handful of media/navigation keys).
// Unrecognized KEY_* names fail to parse rather than silently mapping
// to 0, per ParseActivator.
var keyNames = map[string]uint32{
	"KEY_ESC": 1,
	"KEY_1":   2, "KEY_2": 3, "KEY_3": 4, "KEY_4": 5, "KEY_5": 6,
	"KEY_6": 7, "KEY_7": 8, "KEY_8": 9, "KEY_9": 10, "KEY_0": 11,
	"KEY_Q": 16, "KEY_W": 17, "KEY_E": 18, "KEY_R": 19, "KEY_T": 20,
	"KEY_Y": 21, "KEY_U": 22, "KEY_I": 23, "KEY_O": 24, "KEY_P": 25,
	"KEY_A": 30, "KEY_S": 31, "KEY_D": 32, "KEY_F": 33, "KEY_G": 34,
	"KEY_H": 35, "KEY_J": 36, "KEY_K": 37, "KEY_L": 38,
	"KEY_Z": 44, "KEY_X": 45, "KEY_C": 46, "KEY_V": 47, "KEY_B": 48,
	"KEY_N": 49, "KEY_M": 50,
	"KEY_ENTER": 28, "KEY_SPACE": 57, "KEY_TAB": 15,
	"KEY_LEFT": 105, "KEY_RIGHT": 106, "KEY_UP": 103, "KEY_DOWN": 108,
	"KEY_F1": 59, "KEY_F2": 60, "KEY_F3": 61, "KEY_F4": 62, "KEY_F5": 63,
	"KEY_F6": 64, "KEY_F7": 65, "KEY_F8": 66, "KEY_F9": 67, "KEY_F10": 68,
	"KEY_F11": 87, "KEY_F12": 88,
}

// VTKeys maps the VT-switch target keys (KEY_F1..KEY_F10) to the VT
// number a back-end session switch requests, per spec.md §4.D step 1
// (Ctrl+Alt+F1..F10).
var VTKeys = map[uint32]int{
	59: 1, 60: 2, 61: 3, 62: 4, 63: 5, 64: 6, 65: 7, 66: 8, 67: 9, 68: 10,
}

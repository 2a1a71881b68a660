// Package usher defines the neutral protocol shared by the kernel, platform
// drivers, and modules of the usher invite-attribution bot.
//
// Drivers translate platform updates into usher events; modules consume
// events and expose services through the registry. The package carries no
// platform-specific types so modules stay portable across drivers.
package usher

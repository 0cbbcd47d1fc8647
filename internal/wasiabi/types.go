package wasiabi

// Filetype identifies the type of a file.
type Filetype uint8

const (
	FiletypeUnknown Filetype = iota
	FiletypeBlockDevice
	FiletypeCharacterDevice
	FiletypeDirectory
	FiletypeRegularFile
	FiletypeSocketDgram
	FiletypeSocketStream
	FiletypeSymbolicLink
)

// Rights is a bitset of WASI preview-1 rights. Every descriptor carries a
// base set (what this descriptor itself may do) and an inheriting set (what
// new descriptors opened through it may request).
type Rights uint64

const (
	RightFDDatasync Rights = 1 << iota
	RightFDRead
	RightFDSeek
	RightFDFdstatSetFlags
	RightFDSync
	RightFDTell
	RightFDWrite
	RightFDAdvise
	RightFDAllocate
	RightPathCreateDirectory
	RightPathCreateFile
	RightPathLinkSource
	RightPathLinkTarget
	RightPathOpen
	RightFDReaddir
	RightPathReadlink
	RightPathRenameSource
	RightPathRenameTarget
	RightPathFilestatGet
	RightPathFilestatSetSize
	RightPathFilestatSetTimes
	RightFDFilestatGet
	RightFDFilestatSetSize
	RightFDFilestatSetTimes
	RightPathSymlink
	RightPathRemoveDirectory
	RightPathUnlinkFile
	RightPollFDReadwrite
	RightSockShutdown
	RightSockAccept
)

// directoryOnlyRights are stripped when narrowing rights for a descriptor
// that is opened as a regular file (spec.md §3, "Rights").
const directoryOnlyRights = RightPathCreateDirectory | RightPathCreateFile |
	RightPathLinkSource | RightPathLinkTarget | RightPathOpen | RightFDReaddir |
	RightPathReadlink | RightPathRenameSource | RightPathRenameTarget |
	RightPathFilestatGet | RightPathFilestatSetSize | RightPathFilestatSetTimes |
	RightPathSymlink | RightPathRemoveDirectory | RightPathUnlinkFile

// fileOnlyRights are stripped when narrowing rights for a descriptor that is
// opened as a directory.
const fileOnlyRights = RightFDSeek | RightFDTell | RightFDWrite | RightFDAllocate |
	RightFDFilestatSetSize

// Has reports whether all bits in want are set in r.
func (r Rights) Has(want Rights) bool { return r&want == want }

// NarrowForChild computes the rights a new descriptor may request when
// opened through a directory descriptor whose inheriting set is parent, per
// spec.md §3: "further masked by per-type policy".
func NarrowForChild(parentInheriting, requestedBase, requestedInheriting Rights, isDir bool) (base, inheriting Rights) {
	base = requestedBase & parentInheriting
	inheriting = requestedInheriting & parentInheriting
	if isDir {
		return base &^ fileOnlyRights, inheriting
	}
	return base &^ directoryOnlyRights, inheriting &^ directoryOnlyRights
}

// Fdflags is a bitset of {append, dsync, nonblock, rsync, sync}.
type Fdflags uint16

const (
	FdflagAppend Fdflags = 1 << iota
	FdflagDsync
	FdflagNonblock
	FdflagRsync
	FdflagSync
)

// Oflags controls path_open semantics.
type Oflags uint16

const (
	OflagCreat Oflags = 1 << iota
	OflagDirectory
	OflagExcl
	OflagTrunc
)

// Lookupflags affects path resolution (symlink following, unused here since
// the spec carries no symlink creation, but stat must still decode it).
type Lookupflags uint32

const LookupflagSymlinkFollow Lookupflags = 1

// Whence selects the origin for fd_seek.
type Whence uint8

const (
	WhenceSet Whence = iota
	WhenceCur
	WhenceEnd
)

// ClockID identifies a clock source.
type ClockID uint32

const (
	ClockRealtime ClockID = iota
	ClockMonotonic
	ClockProcessCputimeID
	ClockThreadCputimeID
)

// Eventtype identifies the kind of a poll_oneoff subscription/event.
type Eventtype uint8

const (
	EventtypeClock Eventtype = iota
	EventtypeFDRead
	EventtypeFDWrite
)

// Preopentype identifies the kind of a fd_prestat result. Only "dir" exists
// in preview-1.
type Preopentype uint8

const PreopentypeDir Preopentype = 0

// Subclockflags affects EventtypeClock subscriptions.
type Subclockflags uint16

const SubscriptionClockAbstime Subclockflags = 1

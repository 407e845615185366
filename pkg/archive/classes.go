package archive

// Class name constants for the Objective-C types that appear on the wire as
// $classname entries inside a keyed archive's $classes metadata.
const (
	ClassNSObject      = "NSObject"
	ClassNSDictionary  = "NSDictionary"
	ClassNSMutableDict = "NSMutableDictionary"
	ClassNSArray       = "NSArray"
	ClassNSMutableArr  = "NSMutableArray"
	ClassNSString      = "NSString"
	ClassNSMutableStr  = "NSMutableString"
	ClassNSNumber      = "NSNumber"
	ClassNSValue       = "NSValue"
	ClassNSData        = "NSData"
	ClassUIColor       = "UIColor"
	ClassUIImage       = "UIImage"
	ClassUIEdgeInsets  = "NSValue" // UIEdgeInsets is boxed as an NSValue on the wire
)

// DefaultClassMap renames platform-specific color and image subclasses to
// ClassUIColor and ClassUIImage. Only the class name changes: the object
// still decodes to a *KeyedObject holding its archived fields, not to a
// lookin.Color or lookin.Image. NSColor and NSImage are not in the table.
func DefaultClassMap() map[string]string {
	return map[string]string{
		"UIColor":              ClassUIColor,
		"UIDeviceRGBColor":     ClassUIColor,
		"UICachedDeviceRGBColor": ClassUIColor,
		"UIImage":              ClassUIImage,
		"UICachedImage":        ClassUIImage,
	}
}
